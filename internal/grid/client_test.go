package grid

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridgate/internal/core"
)

func TestSubmitSendsGridHeaders(t *testing.T) {
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		_, _ = w.Write([]byte(`{"id": "job-1"}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClientWithHTTPClient(srv.URL, srv.Client())
	_, err := client.Submit(context.Background(), "grid-key-123", &JobPayload{})
	require.NoError(t, err)

	assert.Equal(t, "grid-key-123", gotHeader.Get("apikey"))
	assert.Equal(t, "application/json", gotHeader.Get("Content-Type"))
}

func TestStatusEscapesJobID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"done": false, "generations": []}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClientWithHTTPClient(srv.URL, srv.Client())
	status, err := client.Status(context.Background(), "key", "job/../../etc")
	require.NoError(t, err)
	assert.False(t, status.Done)
	assert.Equal(t, "/generate/text/status/job%2F..%2F..%2Fetc", gotPath)
}

func TestModelsSendsTypeQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[{"name": "m1"}]`))
	}))
	t.Cleanup(srv.Close)

	client := NewClientWithHTTPClient(srv.URL, srv.Client())
	raw, err := client.Models(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "type=text", gotQuery)
	assert.JSONEq(t, `[{"name": "m1"}]`, string(raw))
}

func TestModelsNon200IsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := NewClientWithHTTPClient(srv.URL, srv.Client())
	_, err := client.Models(context.Background(), "text")

	var gatewayErr *core.GatewayError
	require.ErrorAs(t, err, &gatewayErr)
	assert.Equal(t, core.ErrorTypeUpstream, gatewayErr.Type)
}

func TestNilHTTPClientGetsPooledDefault(t *testing.T) {
	c := NewClientWithHTTPClient("http://grid.invalid", nil)
	require.NotNil(t, c.httpClient)
	assert.NotZero(t, c.httpClient.Timeout, "default client carries a request timeout")
}

func TestStatusTransportErrorIsNotGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClientWithHTTPClient(url, http.DefaultClient)
	_, err := client.Status(context.Background(), "key", "job-1")
	require.Error(t, err)

	var gatewayErr *core.GatewayError
	assert.False(t, errors.As(err, &gatewayErr), "transport errors stay retryable")
}
