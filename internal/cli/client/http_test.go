package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_PostSendsTokenAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"query":"asthma?","top_k":2}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query":"asthma?","answer":"Use an inhaler.","sources":["a.txt"],"contexts":["ctx"],"mode":"extractive"}`))
	}))
	defer server.Close()

	api := NewAPIClientWithConfig("s3cret", server.URL+"/query")

	var resp AskResponse
	err := api.Post(context.Background(), "/query", AskRequest{Query: "asthma?", TopK: 2}, &resp)

	require.NoError(t, err)
	assert.Equal(t, "Use an inhaler.", resp.Answer)
	assert.Equal(t, []string{"a.txt"}, resp.Sources)
}

func TestAPIClient_NoTokenNoHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	api := NewAPIClientWithConfig("", server.URL)
	require.NoError(t, api.Get(context.Background(), "/health", nil))
}

func TestAPIClient_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"generation is not configured","code":"GENERATION_UNAVAILABLE"}`))
	}))
	defer server.Close()

	api := NewAPIClientWithConfig("", server.URL)
	err := api.Post(context.Background(), "/query", AskRequest{Query: "q", Mode: "generative"}, nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "GENERATION_UNAVAILABLE", apiErr.Code)
	assert.Equal(t, "generation is not configured", apiErr.Message)
	assert.Contains(t, err.Error(), "503 GENERATION_UNAVAILABLE")
}

func TestAPIClient_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	api := NewAPIClientWithConfig("", server.URL)
	err := api.Get(context.Background(), "/health", nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "bad gateway", apiErr.Message)
	assert.Empty(t, apiErr.Code)
}

func TestAPIClient_InvalidResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	api := NewAPIClientWithConfig("", server.URL)
	var resp AskResponse
	err := api.Get(context.Background(), "/", &resp)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse response")
}
