package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rollkit/sequencer-relayer/relayer"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Status() relayer.Status {
	return m.Called().Get(0).(relayer.Status)
}

func (m *mockBackend) Ready() error {
	return m.Called().Error(0)
}

func get(t *testing.T, url string) (int, string, http.Header) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body), resp.Header
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(New(Config{}, &mockBackend{}, log.NewNopLogger()).Handler())
	defer srv.Close()

	code, body, _ := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK\n", body)
}

func TestReadyz(t *testing.T) {
	backend := &mockBackend{}
	backend.On("Ready").Return(nil).Once()
	backend.On("Ready").Return(errors.New("sequencer not connected")).Once()

	srv := httptest.NewServer(New(Config{}, backend, log.NewNopLogger()).Handler())
	defer srv.Close()

	code, _, _ := get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusOK, code)

	code, body, _ := get(t, srv.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "sequencer not connected")
	backend.AssertExpectations(t)
}

func TestCursor(t *testing.T) {
	backend := &mockBackend{}
	backend.On("Status").Return(relayer.Status{
		LastSubmittedHeight: 12,
		LastConfirmedHeight: 10,
		PendingHeights:      2,
		InflightBatches:     2,
	})

	srv := httptest.NewServer(New(Config{}, backend, log.NewNopLogger()).Handler())
	defer srv.Close()

	code, body, header := get(t, srv.URL+"/cursor")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "application/json", header.Get("Content-Type"))

	var resp CursorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, CursorResponse{LastSubmittedHeight: 12, LastConfirmedHeight: 10}, resp)
	assert.JSONEq(t, `{"last_submitted_height":12,"last_confirmed_height":10}`, body)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "relayer_test_gauge", Help: "test"})
	reg.MustRegister(gauge)
	gauge.Set(7)

	srv := httptest.NewServer(New(Config{Gatherer: reg}, &mockBackend{}, log.NewNopLogger()).Handler())
	defer srv.Close()

	code, body, _ := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "relayer_test_gauge 7")
}

func TestMetricsDisabled(t *testing.T) {
	srv := httptest.NewServer(New(Config{}, &mockBackend{}, log.NewNopLogger()).Handler())
	defer srv.Close()

	code, _, _ := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(New(Config{}, &mockBackend{}, log.NewNopLogger()).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/cursor", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	s := New(Config{CORSAllowedOrigins: []string{"https://example.com"}}, &mockBackend{}, log.NewNopLogger())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "https://example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServeStopsOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(Config{}, &mockBackend{}, log.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunWithoutAddress(t *testing.T) {
	s := New(Config{}, &mockBackend{}, log.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Run(ctx))
}
