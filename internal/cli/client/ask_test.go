package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsk_EmptyQuestion(t *testing.T) {
	api := NewAPIClientWithConfig("", "http://127.0.0.1:1")

	_, err := ask(context.Background(), api, AskRequest{Query: "   "})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not be empty")
}

func TestAsk_SendsOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what treats migraine?", req["query"])
		assert.Equal(t, "generative", req["mode"])
		assert.Equal(t, false, req["summarize"])
		_, hasTopK := req["top_k"]
		assert.False(t, hasTopK)

		_, _ = w.Write([]byte(`{"query":"what treats migraine?","answer":"Triptans.","sources":["m.md"],"contexts":["c"],"mode":"generative"}`))
	}))
	defer server.Close()

	summarize := false
	resp, err := ask(context.Background(), NewAPIClientWithConfig("", server.URL), AskRequest{
		Query:     "what treats migraine?",
		Mode:      "generative",
		Summarize: &summarize,
	})

	require.NoError(t, err)
	assert.Equal(t, "Triptans.", resp.Answer)
}

func TestRenderAnswer_Text(t *testing.T) {
	var buf bytes.Buffer
	resp := &AskResponse{
		Answer:   "Inhaled corticosteroids.",
		Sources:  []string{"asthma.txt", "gina.pdf"},
		Contexts: []string{"first passage", "second passage"},
		Mode:     "extractive",
	}

	require.NoError(t, renderAnswer(&buf, resp, false, true))

	out := buf.String()
	assert.Contains(t, out, "Inhaled corticosteroids.\n")
	assert.Contains(t, out, "Mode: extractive")
	assert.Contains(t, out, "  1. asthma.txt\n  2. gina.pdf\n")
	assert.Contains(t, out, "[2] second passage")
}

func TestRenderAnswer_EmptyAnswer(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, renderAnswer(&buf, &AskResponse{Sources: []string{}}, false, false))

	assert.Equal(t, "No relevant passages found.\n", buf.String())
}

func TestRenderAnswer_JSON(t *testing.T) {
	var buf bytes.Buffer
	resp := &AskResponse{Query: "q", Answer: "a", Sources: []string{"s"}, Contexts: []string{"c"}, Mode: "extractive"}

	require.NoError(t, renderAnswer(&buf, resp, true, false))

	var decoded AskResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *resp, decoded)
}

func TestListSources_Paging(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sources", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "abc", r.URL.Query().Get("cursor"))
		_, _ = w.Write([]byte(`{"items":[{"source":"a.txt","chunks":3},{"source":"b.pdf","chunks":7}],"cursor":"next","has_more":true}`))
	}))
	defer server.Close()

	page, err := listSources(context.Background(), NewAPIClientWithConfig("", server.URL), "abc", 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	var buf bytes.Buffer
	require.NoError(t, renderSources(&buf, page, false))
	assert.Contains(t, buf.String(), "a.txt")
	assert.Contains(t, buf.String(), "Use --cursor next")
}
