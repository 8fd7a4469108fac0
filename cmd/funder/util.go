package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const requestTimeout = 60 * time.Second

var (
	colorRed = string("\033[31m")

	httpClient = &http.Client{Timeout: requestTimeout}
)

// doRequest sends a request to the daemon and returns the response body.
// Any non 2xx response is returned as error with the description given by
// the daemon.
func doRequest(method, path string, body interface{}) (string, error) {
	state, err := getState()
	if err != nil {
		return "", err
	}
	baseUrl, ok := state["daemon_url"]
	if !ok || baseUrl == "" {
		return "", fmt.Errorf("set daemon url with `config set daemon_url`")
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return "", err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, strings.TrimSuffix(baseUrl, "/")+path, reqBody)
	if err != nil {
		return "", err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to connect to funder daemon: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", parseError(resp.StatusCode, respBody)
	}
	return prettify(respBody), nil
}

func parseError(status int, body []byte) error {
	var resp struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Description == "" {
		return fmt.Errorf("%d %s", status, http.StatusText(status))
	}
	if bytes.Contains(body, []byte(`"outpoints"`)) {
		return fmt.Errorf("%s\n%s", resp.Description, prettify(body))
	}
	return fmt.Errorf("%s", resp.Description)
}

func prettify(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return strings.TrimSpace(string(body))
	}
	return strings.TrimSpace(buf.String())
}

// formatBsv converts satoshis to BSV with fixed 8 decimals.
func formatBsv(sats uint64) string {
	return decimal.NewFromBigInt(
		new(big.Int).SetUint64(sats), -8,
	).StringFixed(8)
}

func getState() (map[string]string, error) {
	file, err := os.ReadFile(statePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := writeState(initialState); err != nil {
			return nil, err
		}
		return copyState(initialState), nil
	}

	data := map[string]string{}
	if err := json.Unmarshal(file, &data); err != nil {
		return nil, fmt.Errorf("invalid state file %s: %s", statePath, err)
	}
	return data, nil
}

func setState(partialState map[string]string) error {
	state, err := getState()
	if err != nil {
		return err
	}

	for key, value := range partialState {
		state[key] = value
	}
	return writeState(state)
}

func writeState(state map[string]string) error {
	dir := filepath.Dir(statePath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %v", err)
		}
	}

	buf, _ := json.MarshalIndent(state, "", "  ")
	if err := os.WriteFile(statePath, buf, 0600); err != nil {
		return fmt.Errorf("writing to file: %w", err)
	}
	return nil
}

func copyState(state map[string]string) map[string]string {
	c := make(map[string]string, len(state))
	for k, v := range state {
		c[k] = v
	}
	return c
}

func printErr(err error) {
	msg := fmt.Sprintf("%s%s", colorRed, capitalize(err.Error()))
	fmt.Fprintln(os.Stderr, msg)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[0:1]) + s[1:]
}

func formatVersion() string {
	return fmt.Sprintf(
		"\nVersion: %s\nCommit: %s\nDate: %s", version, commit, date,
	)
}
