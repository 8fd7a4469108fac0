package woc_gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/funder/internal/core/domain"
	"github.com/vulpemventures/funder/internal/core/ports"
)

const (
	// DefaultBaseUrl is the WhatsOnChain API root, without network segment.
	DefaultBaseUrl = "https://api.whatsonchain.com/v1/bsv"
	// DefaultTimeout bounds every request made to the API.
	DefaultTimeout = 30 * time.Second

	maxBodySize    = 10 << 20
	maxErrBodySize = 256
)

var networkPaths = map[domain.Network]string{
	domain.Mainnet: "main",
	domain.Testnet: "test",
	domain.Stn:     "stn",
}

type ServiceArgs struct {
	Network domain.Network
	BaseUrl string
	Timeout time.Duration
}

func (a ServiceArgs) validate() error {
	if len(a.Network) <= 0 {
		return fmt.Errorf("missing network")
	}
	if _, ok := networkPaths[a.Network]; !ok {
		return fmt.Errorf("unsupported network %s", a.Network)
	}
	if len(a.BaseUrl) > 0 {
		u, err := url.Parse(a.BaseUrl)
		if err != nil {
			return fmt.Errorf("invalid base url: %s", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid base url: unknown scheme %s", u.Scheme)
		}
	}
	if a.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

func (a ServiceArgs) baseUrl() string {
	baseUrl := a.BaseUrl
	if len(baseUrl) <= 0 {
		baseUrl = DefaultBaseUrl
	}
	return fmt.Sprintf(
		"%s/%s", strings.TrimRight(baseUrl, "/"), networkPaths[a.Network],
	)
}

func (a ServiceArgs) timeout() time.Duration {
	if a.Timeout == 0 {
		return DefaultTimeout
	}
	return a.Timeout
}

type service struct {
	network domain.Network
	baseUrl string
	client  *http.Client

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

// NewService returns a gateway backed by the WhatsOnChain REST API.
func NewService(args ServiceArgs) (ports.BlockchainGateway, error) {
	if err := args.validate(); err != nil {
		return nil, fmt.Errorf("invalid args: %s", err)
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("woc gateway: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("woc gateway: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	return &service{
		network: args.Network,
		baseUrl: args.baseUrl(),
		client:  &http.Client{Timeout: args.timeout()},
		log:     logFn,
		warn:    warnFn,
	}, nil
}

func (s *service) Network() domain.Network {
	return s.network
}

func (s *service) GetBalance(
	ctx context.Context, address string,
) (*domain.Balance, error) {
	var balance wocBalance
	path := fmt.Sprintf("/address/%s/balance", url.PathEscape(address))
	if err := s.get(ctx, path, &balance); err != nil {
		return nil, err
	}
	return balance.toDomain(), nil
}

func (s *service) GetUtxos(
	ctx context.Context, address string,
) ([]domain.UtxoEntry, error) {
	var utxos wocUtxos
	path := fmt.Sprintf("/address/%s/unspent", url.PathEscape(address))
	if err := s.get(ctx, path, &utxos); err != nil {
		return nil, err
	}
	return utxos.toDomain(), nil
}

func (s *service) BroadcastTransaction(
	ctx context.Context, txHex string,
) (string, error) {
	payload, err := json.Marshal(broadcastRequest{txHex})
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrGateway, err)
	}

	body, err := s.do(ctx, http.MethodPost, "/tx/raw", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	var txid string
	if err := json.Unmarshal(body, &txid); err != nil {
		txid = strings.Trim(strings.TrimSpace(string(body)), "\"")
	}
	if len(txid) <= 0 {
		return "", fmt.Errorf("%w: empty broadcast response", domain.ErrGateway)
	}

	s.log("broadcasted tx %s", txid)
	return txid, nil
}

func (s *service) GetBlockHeaders(ctx context.Context) error {
	var headers []json.RawMessage
	return s.get(ctx, "/block/headers", &headers)
}

func (s *service) get(ctx context.Context, path string, out interface{}) error {
	body, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf(
			"%w: failed to decode response of GET %s: %s",
			domain.ErrGateway, path, err,
		)
	}
	return nil
}

func (s *service) do(
	ctx context.Context, method, path string, payload io.Reader,
) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseUrl+path, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrGateway, err)
	}
	req.Header.Add("Accept", "application/json")
	if payload != nil {
		req.Header.Add("Content-Type", "application/json;charset=utf-8")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %s", domain.ErrGateway, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %s", domain.ErrGateway, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := strings.TrimSpace(string(body))
		if len(excerpt) > maxErrBodySize {
			excerpt = excerpt[:maxErrBodySize]
		}
		err := fmt.Errorf(
			"%w: %s %s returned %d: %s",
			domain.ErrGateway, method, path, resp.StatusCode, excerpt,
		)
		s.warn(err, "request failed")
		return nil, err
	}

	return body, nil
}
