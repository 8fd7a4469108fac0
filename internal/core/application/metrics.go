package application

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vulpemventures/funder/internal/core/domain"
)

const metricsNamespace = "funder"

type metrics struct {
	fundingRequests   *prometheus.CounterVec
	outpointsCreated  prometheus.Counter
	broadcastFailures prometheus.Counter
	refreshes         *prometheus.CounterVec
	connectivity      prometheus.Gauge
	wallets           prometheus.Gauge
	balance           *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		fundingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "funding_requests_total",
			Help:      "Funding requests served, by result.",
		}, []string{"result"}),
		outpointsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "outpoints_created_total",
			Help:      "Funded outpoints broadcast to the network.",
		}),
		broadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "broadcast_failures_total",
			Help:      "Funding txs rejected by the blockchain gateway.",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "refreshes_total",
			Help:      "Wallet refreshes, by result.",
		}, []string{"result"}),
		connectivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connectivity_status",
			Help:      "Blockchain connectivity: 0 unknown, 1 failed, 2 connected.",
		}),
		wallets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "wallets",
			Help:      "Number of wallets served.",
		}),
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "wallet_balance_satoshis",
			Help:      "Balance of each wallet as of the last refresh.",
		}, []string{"client_id", "status"}),
	}

	for _, c := range []prometheus.Collector{
		m.fundingRequests, m.outpointsCreated, m.broadcastFailures,
		m.refreshes, m.connectivity, m.wallets, m.balance,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *metrics) observeFunding(numOfOutpoints int, err error) {
	m.fundingRequests.WithLabelValues(fundingResult(err)).Inc()
	m.outpointsCreated.Add(float64(numOfOutpoints))
	if errors.Is(err, domain.ErrBroadcastFailure) {
		m.broadcastFailures.Inc()
	}
}

func (m *metrics) observeRefresh(status domain.ConnectivityStatus) {
	m.refreshes.WithLabelValues(status.String()).Inc()
	m.connectivity.Set(float64(status))
}

func (m *metrics) observeWallet(w *domain.Wallet) {
	balance := w.Balance()
	m.balance.WithLabelValues(w.ClientID, "confirmed").Set(float64(balance.Confirmed))
	m.balance.WithLabelValues(w.ClientID, "unconfirmed").Set(float64(balance.Unconfirmed))
}

func (m *metrics) forgetWallet(clientID string) {
	m.balance.DeleteLabelValues(clientID, "confirmed")
	m.balance.DeleteLabelValues(clientID, "unconfirmed")
}

func fundingResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrBroadcastFailure):
		return "broadcast_failure"
	default:
		return "error"
	}
}
