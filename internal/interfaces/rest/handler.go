package rest_interface

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/funder/internal/core/application"
	"github.com/vulpemventures/funder/internal/core/domain"
)

const maxRequestSize = 1 << 20

// Handler serves the REST api of a funding service and streams its events
// to websocket clients.
type Handler struct {
	svc     *application.FundingService
	hub     *eventHub
	handler http.Handler
}

// NewHandler registers the event stream as handler of every funding event
// of the given service.
func NewHandler(svc *application.FundingService) *Handler {
	h := &Handler{
		svc: svc,
		hub: newEventHub(),
	}

	for _, eventType := range []application.FundingEventType{
		application.ConnectivityChanged,
		application.FundingSucceeded,
		application.FundingFailed,
		application.ClientAdded,
		application.ClientRemoved,
	} {
		svc.RegisterHandlerForFundingEvent(eventType, h.hub.publish)
	}

	router := mux.NewRouter()
	router.Use(withRequestID)
	router.HandleFunc("/", h.index).Methods(http.MethodGet)
	router.HandleFunc("/status", h.status).Methods(http.MethodGet)
	router.HandleFunc("/client/{id}/balance", h.balance).Methods(http.MethodGet)
	router.HandleFunc("/client/{id}/address", h.address).Methods(http.MethodGet)
	router.HandleFunc("/fund", h.fund).Methods(http.MethodPost)
	router.HandleFunc("/client", h.addClient).Methods(http.MethodPost)
	router.HandleFunc("/client/{id}", h.deleteClient).Methods(http.MethodDelete)
	router.HandleFunc("/events", h.hub.serve).Methods(http.MethodGet)
	h.handler = router

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// Close disconnects all event stream clients.
func (h *Handler) Close() {
	h.hub.close()
}

func clientID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

func (h *Handler) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	// nolint
	w.Write([]byte(banner))
}

func (h *Handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newStatusResponse(h.svc.GetStatus()))
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.svc.GetBalance(clientID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (h *Handler) address(w http.ResponseWriter, r *http.Request) {
	addr, err := h.svc.GetAddress(clientID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addressResponse{addr})
}

func (h *Handler) fund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Fund(r.Context(), req.toArgs())
	if err != nil {
		var broadcastErr *domain.BroadcastError
		if errors.As(err, &broadcastErr) {
			writeJSON(w, http.StatusUnprocessableEntity, fundResponse{
				Status:      statusFailure,
				Description: broadcastErr.Error(),
				Outpoints:   outpointsOrEmpty(broadcastErr.Outpoints),
			})
			return
		}
		writeError(w, err)
		return
	}

	txs, err := result.TxsHex()
	if err != nil {
		writeError(w, err)
		return
	}
	resp := fundResponse{
		Status:    statusSuccess,
		Outpoints: outpointsOrEmpty(result.Outpoints),
	}
	if req.MultipleTx && req.NoOfOutpoints > 1 {
		resp.Txs = txs
	} else if len(txs) > 0 {
		resp.Tx = txs[0]
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) addClient(w http.ResponseWriter, r *http.Request) {
	var req addClientRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ClientID == "" {
		writeError(w, domain.ErrMissingClientID)
		return
	}
	if req.wifKey() == "" {
		writeError(w, fmt.Errorf("%w: missing wif_key", domain.ErrInvalidKey))
		return
	}

	if err := h.svc.AddWallet(r.Context(), req.ClientID, req.wifKey()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{statusSuccess})
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteClient(r.Context(), clientID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{statusSuccess})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestSize)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed request body: %s", errMalformedBody, err)
	}
	return nil
}

var errMalformedBody = fmt.Errorf("bad request")

// errorStatus maps the error taxonomy onto http status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrClientNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidKey),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrDuplicateClient),
		errors.Is(err, domain.ErrBroadcastFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), errorResponse{err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("rest: failed to write response")
	}
}

func outpointsOrEmpty(outpoints []domain.Outpoint) []domain.Outpoint {
	if outpoints == nil {
		return make([]domain.Outpoint, 0)
	}
	return outpoints
}
