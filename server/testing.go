package server

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/heatguard/risk-scoring-api/config"
	"github.com/heatguard/risk-scoring-api/internal/appctx"
	"github.com/heatguard/risk-scoring-api/metrics"
)

// The file provides utilities for integration testing:
// - `server.NewTestServer(cfg, app, logWriter, registry)`: a full HTTP test server for end-to-end testing
// - `server.NewTestServerWithRecorder(cfg, app, logWriter, registry)`: fast in-process testing
// - `srv.ServeHTTP(responseRecorder, request)`: direct testing with httptest.ResponseRecorder

// TestServer wraps a Server for testing purposes.
type TestServer struct {
	*Server
	HTTPServer *httptest.Server
}

// NewTestServer creates a new test server with the given configuration.
func NewTestServer(cfg *config.Config, app *appctx.App, logWriter io.Writer, reg *prometheus.Registry) *TestServer {
	if reg == nil {
		reg = metrics.InitMetrics()
	}

	server := New(cfg, app, logWriter, reg)
	httpServer := httptest.NewServer(server.router)

	return &TestServer{
		Server:     server,
		HTTPServer: httpServer,
	}
}

// NewTestServerWithRecorder creates a test server that uses httptest.ResponseRecorder
// instead of a real HTTP server. This is faster for unit-style integration tests.
func NewTestServerWithRecorder(cfg *config.Config, app *appctx.App, logWriter io.Writer, reg *prometheus.Registry) *Server {
	if reg == nil {
		reg = metrics.InitMetrics()
	}

	return New(cfg, app, logWriter, reg)
}

// ServeHTTP allows the server to be used directly with httptest.ResponseRecorder.
func (s *Server) ServeHTTP(recorder *httptest.ResponseRecorder, request *http.Request) {
	s.router.ServeHTTP(recorder, request)
}
