package command

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricServer struct {
	server *http.Server
	closed bool
	mux    sync.Mutex
}

func (m *metricServer) Shutdown(ctx context.Context) error {
	m.mux.Lock()
	defer m.mux.Unlock()

	m.closed = true
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *metricServer) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	m.mux.Lock()
	if m.closed {
		m.mux.Unlock()
		return nil
	}
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	m.server = server
	m.mux.Unlock()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
