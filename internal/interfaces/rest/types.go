package rest_interface

import (
	"github.com/vulpemventures/funder/internal/core/application"
	"github.com/vulpemventures/funder/internal/core/domain"
)

const (
	banner = "Funding Service REST API"

	statusSuccess = "Success"
	statusFailure = "Failure"
)

type statusResponse struct {
	Version            string `json:"version"`
	Commit             string `json:"commit"`
	Date               string `json:"date"`
	ConnectivityStatus string `json:"connectivity_status"`
	LastUpdateTime     string `json:"last_update_time"`
}

func newStatusResponse(s application.Status) statusResponse {
	return statusResponse{
		Version:            s.Version,
		Commit:             s.Commit,
		Date:               s.Date,
		ConnectivityStatus: s.Connectivity.String(),
		LastUpdateTime:     s.LastUpdateString(),
	}
}

type fundRequest struct {
	ClientID      string `json:"client_id"`
	Satoshi       uint64 `json:"satoshi"`
	NoOfOutpoints uint32 `json:"no_of_outpoints"`
	MultipleTx    bool   `json:"multiple_tx"`
	LockingScript string `json:"locking_script"`
}

func (r fundRequest) toArgs() application.FundArgs {
	return application.FundArgs{
		ClientID:      r.ClientID,
		Satoshi:       r.Satoshi,
		OutputCount:   r.NoOfOutpoints,
		MultiTx:       r.MultipleTx,
		LockingScript: r.LockingScript,
	}
}

// fundResponse carries the raw tx in Tx for single-tx requests, in Txs
// otherwise.
type fundResponse struct {
	Status      string            `json:"status"`
	Description string            `json:"description,omitempty"`
	Outpoints   []domain.Outpoint `json:"outpoints"`
	Tx          string            `json:"tx,omitempty"`
	Txs         []string          `json:"txs,omitempty"`
}

type addClientRequest struct {
	ClientID string `json:"client_id"`
	WifKey   string `json:"wif_key"`
	// Wif is the legacy name of WifKey.
	Wif string `json:"wif"`
}

func (r addClientRequest) wifKey() string {
	if r.WifKey != "" {
		return r.WifKey
	}
	return r.Wif
}

type addressResponse struct {
	Address string `json:"address"`
}

type successResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Description string `json:"description"`
}

// eventMessage is the form of a FundingEvent on the event stream.
type eventMessage struct {
	Type               string            `json:"type"`
	ClientID           string            `json:"client_id,omitempty"`
	Outpoints          []domain.Outpoint `json:"outpoints,omitempty"`
	ConnectivityStatus string            `json:"connectivity_status,omitempty"`
	Error              string            `json:"error,omitempty"`
	Timestamp          int64             `json:"timestamp"`
}

func newEventMessage(e application.FundingEvent) eventMessage {
	msg := eventMessage{
		Type:      e.EventType.String(),
		ClientID:  e.ClientID,
		Outpoints: e.Outpoints,
		Error:     e.Error,
		Timestamp: e.Timestamp.Unix(),
	}
	if e.EventType == application.ConnectivityChanged {
		msg.ConnectivityStatus = e.Connectivity.String()
	}
	return msg
}
