package rest_interface_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/funder/internal/core/application"
	"github.com/vulpemventures/funder/internal/core/domain"
	testchain_gateway "github.com/vulpemventures/funder/internal/infrastructure/blockchain-gateway/testchain"
	"github.com/vulpemventures/funder/internal/infrastructure/wallet-store/inmemory"
	rest_interface "github.com/vulpemventures/funder/internal/interfaces/rest"
	wallet "github.com/vulpemventures/funder/pkg/single-key-wallet"
)

const (
	chainHeight   = 800000
	lockingScript = "76a914" + "000102030405060708090a0b0c0d0e0f10111213" + "88ac"
)

var ctx = context.Background()

func TestIndexAndStatus(t *testing.T) {
	t.Parallel()

	server, _, svc := newTestServer(t)

	status, body := doRequest(t, server, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Funding Service REST API", string(body))

	var resp map[string]string
	status, body = doRequest(t, server, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, "v0.1.0", resp["version"])
	require.Equal(t, "Unknown", resp["connectivity_status"])
	require.Equal(t, "None", resp["last_update_time"])

	svc.RefreshAll(ctx)

	status, body = doRequest(t, server, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, "Connected", resp["connectivity_status"])
	lastUpdate, err := time.Parse(application.StatusTimeLayout, resp["last_update_time"])
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().UTC(), lastUpdate, time.Minute)
}

func TestClients(t *testing.T) {
	t.Parallel()

	server, gw, svc := newTestServer(t)
	wif := newTestWif(t)
	address := newTestAddress(t, wif)
	gw.SetUtxos(address, []domain.UtxoEntry{
		{Height: chainHeight - 10, TxPos: 0, TxHash: randomHash(), Value: 5000},
		{Height: chainHeight, TxPos: 1, TxHash: randomHash(), Value: 700},
	})

	t.Run("add", func(t *testing.T) {
		status, body := doRequest(t, server, http.MethodPost, "/client", map[string]string{
			"client_id": "id1", "wif_key": wif,
		})
		require.Equal(t, http.StatusOK, status, string(body))
		require.JSONEq(t, `{"status":"Success"}`, string(body))

		// Legacy body.
		status, body = doRequest(t, server, http.MethodPost, "/client", map[string]string{
			"client_id": "id2", "wif": newTestWif(t),
		})
		require.Equal(t, http.StatusOK, status, string(body))
		require.Equal(t, []string{"id1", "id2"}, svc.ListClients())
	})

	t.Run("add invalid", func(t *testing.T) {
		tests := []struct {
			name   string
			body   interface{}
			status int
		}{
			{
				name:   "duplicate client",
				body:   map[string]string{"client_id": "id1", "wif_key": newTestWif(t)},
				status: http.StatusUnprocessableEntity,
			},
			{
				name:   "invalid key",
				body:   map[string]string{"client_id": "id3", "wif_key": "notakey"},
				status: http.StatusUnprocessableEntity,
			},
			{
				name:   "missing key",
				body:   map[string]string{"client_id": "id3"},
				status: http.StatusUnprocessableEntity,
			},
			{
				name:   "missing client id",
				body:   map[string]string{"wif_key": newTestWif(t)},
				status: http.StatusUnprocessableEntity,
			},
			{
				name:   "malformed body",
				body:   "{\"client_id\":",
				status: http.StatusBadRequest,
			},
		}

		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				status, body := doRequest(t, server, http.MethodPost, "/client", tt.body)
				require.Equal(t, tt.status, status)

				var resp map[string]string
				require.NoError(t, json.Unmarshal(body, &resp))
				require.NotEmpty(t, resp["description"])
			})
		}
	})

	t.Run("address and balance", func(t *testing.T) {
		status, body := doRequest(t, server, http.MethodGet, "/client/id1/address", nil)
		require.Equal(t, http.StatusOK, status)
		require.JSONEq(t, fmt.Sprintf(`{"address":"%s"}`, address), string(body))

		status, body = doRequest(t, server, http.MethodGet, "/client/id1/balance", nil)
		require.Equal(t, http.StatusOK, status)
		require.JSONEq(t, `{"confirmed":5000,"unconfirmed":700}`, string(body))

		status, _ = doRequest(t, server, http.MethodGet, "/client/unknown/address", nil)
		require.Equal(t, http.StatusNotFound, status)
		status, _ = doRequest(t, server, http.MethodGet, "/client/unknown/balance", nil)
		require.Equal(t, http.StatusNotFound, status)
	})

	t.Run("delete", func(t *testing.T) {
		status, body := doRequest(t, server, http.MethodDelete, "/client/id2", nil)
		require.Equal(t, http.StatusOK, status)
		require.JSONEq(t, `{"status":"Success"}`, string(body))
		require.Equal(t, []string{"id1"}, svc.ListClients())

		status, _ = doRequest(t, server, http.MethodDelete, "/client/id2", nil)
		require.Equal(t, http.StatusNotFound, status)
	})
}

func TestFund(t *testing.T) {
	t.Parallel()

	server, gw, svc := newTestServer(t)
	wif := newTestWif(t)
	address := newTestAddress(t, wif)
	gw.SetUtxos(address, []domain.UtxoEntry{
		{Height: chainHeight - 10, TxPos: 0, TxHash: randomHash(), Value: 100000},
	})
	err := svc.AddWallet(ctx, "id1", wif)
	require.NoError(t, err)

	t.Run("single tx", func(t *testing.T) {
		status, body := doRequest(t, server, http.MethodPost, "/fund", map[string]interface{}{
			"client_id":       "id1",
			"satoshi":         1000,
			"no_of_outpoints": 2,
			"multiple_tx":     false,
			"locking_script":  lockingScript,
		})
		require.Equal(t, http.StatusOK, status, string(body))

		var resp fundResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		require.Equal(t, "Success", resp.Status)
		require.Empty(t, resp.Txs)
		require.Equal(t, gw.Broadcasts()[0], resp.Tx)

		tx, err := wallet.TxFromHex(resp.Tx)
		require.NoError(t, err)
		require.Len(t, tx.TxOut, 3)
		require.Equal(t, int64(100000-2000-750), tx.TxOut[0].Value)
		require.Equal(t, []domain.Outpoint{
			{Hash: tx.TxHash().String(), Index: 1},
			{Hash: tx.TxHash().String(), Index: 2},
		}, resp.Outpoints)
	})

	t.Run("multiple tx", func(t *testing.T) {
		status, body := doRequest(t, server, http.MethodPost, "/fund", map[string]interface{}{
			"client_id":       "id1",
			"satoshi":         1000,
			"no_of_outpoints": 3,
			"multiple_tx":     true,
			"locking_script":  lockingScript,
		})
		require.Equal(t, http.StatusOK, status, string(body))

		var resp fundResponse
		require.NoError(t, json.Unmarshal(body, &resp))
		require.Equal(t, "Success", resp.Status)
		require.Empty(t, resp.Tx)
		require.Len(t, resp.Txs, 3)
		require.Len(t, resp.Outpoints, 3)
		require.Equal(t, resp.Txs, gw.Broadcasts()[1:])
		for i, txHex := range resp.Txs {
			tx, err := wallet.TxFromHex(txHex)
			require.NoError(t, err)
			require.Equal(t, domain.Outpoint{
				Hash: tx.TxHash().String(), Index: 1,
			}, resp.Outpoints[i])
		}
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name   string
			body   map[string]interface{}
			status int
		}{
			{
				name: "unknown client",
				body: map[string]interface{}{
					"client_id": "unknown", "satoshi": 0, "no_of_outpoints": 0,
					"locking_script": "zz",
				},
				status: http.StatusUnprocessableEntity,
			},
			{
				name: "zero satoshi",
				body: map[string]interface{}{
					"client_id": "id1", "satoshi": 0, "no_of_outpoints": 1,
					"locking_script": lockingScript,
				},
				status: http.StatusUnprocessableEntity,
			},
			{
				name: "zero outpoints",
				body: map[string]interface{}{
					"client_id": "id1", "satoshi": 100, "no_of_outpoints": 0,
					"locking_script": lockingScript,
				},
				status: http.StatusUnprocessableEntity,
			},
			{
				name: "malformed locking script",
				body: map[string]interface{}{
					"client_id": "id1", "satoshi": 100, "no_of_outpoints": 1,
					"locking_script": "zz",
				},
				status: http.StatusUnprocessableEntity,
			},
			{
				name: "insufficient funds",
				body: map[string]interface{}{
					"client_id": "id1", "satoshi": 1000000, "no_of_outpoints": 1,
					"locking_script": lockingScript,
				},
				status: http.StatusUnprocessableEntity,
			},
			{
				name: "negative satoshi",
				body: map[string]interface{}{
					"client_id": "id1", "satoshi": -1, "no_of_outpoints": 1,
					"locking_script": lockingScript,
				},
				status: http.StatusBadRequest,
			},
		}

		numOfBroadcasts := len(gw.Broadcasts())
		for _, tt := range tests {
			tt := tt
			t.Run(tt.name, func(t *testing.T) {
				status, body := doRequest(t, server, http.MethodPost, "/fund", tt.body)
				require.Equal(t, tt.status, status, string(body))

				var resp map[string]interface{}
				require.NoError(t, json.Unmarshal(body, &resp))
				require.NotEmpty(t, resp["description"])
			})
		}
		require.Len(t, gw.Broadcasts(), numOfBroadcasts)
	})
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	server, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/status", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "my-request")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "my-request", resp.Header.Get("X-Request-Id"))

	resp, err = http.Get(server.URL + "/status")
	require.NoError(t, err)
	resp.Body.Close()
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestRouting(t *testing.T) {
	t.Parallel()

	server, _, svc := newTestServer(t)
	err := svc.AddWallet(ctx, "id1", newTestWif(t))
	require.NoError(t, err)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/client/id1/address", http.StatusOK},
		{http.MethodGet, "/unknown", http.StatusNotFound},
		{http.MethodGet, "/client/id1", http.StatusMethodNotAllowed},
		{http.MethodGet, "/fund", http.StatusMethodNotAllowed},
		{http.MethodPost, "/status", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/client", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/client/id1", http.StatusOK},
	}
	for _, tt := range tests {
		status, _ := doRequest(t, server, tt.method, tt.path, nil)
		require.Equal(t, tt.status, status, "%s %s", tt.method, tt.path)
	}

	// Path ids reach the handlers and requests are tagged.
	req, err := http.NewRequest(
		http.MethodGet, server.URL+"/client/id1/balance", nil,
	)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "balance-request")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "balance-request", resp.Header.Get("X-Request-Id"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body["description"], "id1")
}

type fundResponse struct {
	Status    string            `json:"status"`
	Outpoints []domain.Outpoint `json:"outpoints"`
	Tx        string            `json:"tx"`
	Txs       []string          `json:"txs"`
}

func newTestServer(t *testing.T) (
	*httptest.Server, *testchain_gateway.Gateway, *application.FundingService,
) {
	gw := testchain_gateway.NewService(domain.Testnet, chainHeight)
	svc, err := application.NewFundingService(ctx, application.ServiceArgs{
		Gateway:       gw,
		Store:         inmemory.NewStore(),
		BuildInfo:     application.BuildInfo{Version: "v0.1.0"},
		RefreshTicker: ticker.NewForce(time.Hour),
	})
	require.NoError(t, err)

	handler := rest_interface.NewHandler(svc)
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		handler.Close()
		server.Close()
	})
	return server, gw, svc
}

func doRequest(
	t *testing.T, server *httptest.Server, method, path string, body interface{},
) (int, []byte) {
	var reqBody io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reqBody = strings.NewReader(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(t, err)
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, server.URL+path, reqBody)
	require.NoError(t, err)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, respBody
}

func newTestWif(t *testing.T) string {
	prvkey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	wif, err := btcutil.NewWIF(prvkey, &chaincfg.TestNet3Params, true)
	require.NoError(t, err)
	return wif.String()
}

func newTestAddress(t *testing.T, wif string) string {
	w, err := domain.NewWallet("any", wif, domain.Testnet)
	require.NoError(t, err)
	return w.Address()
}

func randomHash() string {
	prvkey, _ := btcec.NewPrivateKey()
	return fmt.Sprintf("%x", prvkey.Serialize())
}
