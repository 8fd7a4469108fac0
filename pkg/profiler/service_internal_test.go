package profiler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestServiceOpts(t *testing.T) {
	tests := []struct {
		name string
		opts ServiceOpts
	}{
		{"missing datadir", ServiceOpts{Port: 18001, StatsInterval: time.Second}},
		{"port out of range", ServiceOpts{Port: 80, StatsInterval: time.Second, Datadir: "stats"}},
		{"missing interval", ServiceOpts{Port: 18001, Datadir: "stats"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.opts)
			require.Error(t, err)
			require.Nil(t, svc)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_requests_total",
		Help: "Test counter.",
	})
	require.NoError(t, reg.Register(counter))
	require.NoError(t, RegisterRuntimeCollectors(reg))
	// Registering twice is fine.
	require.NoError(t, RegisterRuntimeCollectors(reg))
	counter.Add(3)

	server := httptest.NewServer(newHandler(reg))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "test_requests_total 3")
	require.Contains(t, string(body), "go_goroutines")

	resp, err = http.Get(server.URL + "/debug/pprof/")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDumpMetrics(t *testing.T) {
	datadir := t.TempDir()
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterRuntimeCollectors(reg))

	svc, err := NewService(ServiceOpts{
		Port:          18001,
		StatsInterval: time.Hour,
		Datadir:       datadir,
		Gatherer:      reg,
	})
	require.NoError(t, err)

	require.NoError(t, svc.dumpMetrics(datadir))
	files, err := os.ReadDir(datadir)
	require.NoError(t, err)
	require.Len(t, files, 1)
}
