package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearbasin/planengine/internal/cache"
	"github.com/clearbasin/planengine/internal/observability"
)

func completionResponse(content string) string {
	raw, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(raw)
}

const emptyResult = `{"goals":[],"bmps":[],"implementation":[],"monitoring":[],"outreach":[],"geographicAreas":[]}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, nil, 0, observability.Nop())
}

func TestExtractPage_MissingCredentialsReturnsNil(t *testing.T) {
	c := NewClient(Config{}, nil, 0, observability.Nop())

	result, raw := c.ExtractPage(context.Background(), "<p>anything</p>")
	assert.Nil(t, result)
	assert.Empty(t, raw)
}

func TestExtractPage_PinsDeterministicSampling(t *testing.T) {
	var captured map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(completionResponse(emptyResult)))
	})

	result, _ := c.ExtractPage(context.Background(), "<p>page</p>")
	require.NotNil(t, result)
	assert.True(t, result.IsEmpty())

	assert.InDelta(t, 0.1, captured["temperature"].(float64), 1e-9)
	rf := captured["response_format"].(map[string]any)
	assert.Equal(t, "json_object", rf["type"])
}

func TestExtractPage_ValidPayloadParsed(t *testing.T) {
	payload := `{"goals":[{"title":"Reduce Nitrogen","evidence":["p.3 table 2"]}],` +
		`"bmps":[],"implementation":[],"monitoring":[],"outreach":[],"geographicAreas":[]}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionResponse(payload)))
	})

	result, raw := c.ExtractPage(context.Background(), "<p>page</p>")
	require.NotNil(t, result)
	assert.Equal(t, payload, raw)
	require.Len(t, result.Goals, 1)
	assert.Equal(t, "Reduce Nitrogen", result.Goals[0]["title"])
}

func TestExtractPage_MalformedResponseRetainsRaw(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionResponse("the plan is about water quality")))
	})

	result, raw := c.ExtractPage(context.Background(), "<p>page</p>")
	assert.Nil(t, result)
	assert.Equal(t, "the plan is about water quality", raw)
}

func TestExtractPage_ServerErrorDegradesToNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	result, raw := c.ExtractPage(context.Background(), "<p>page</p>")
	assert.Nil(t, result)
	assert.Empty(t, raw)
}

func TestExtractPage_CachesValidResponses(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(completionResponse(emptyResult)))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, cache.NewMemoryClient(10), 0, observability.Nop())

	_, _ = c.ExtractPage(context.Background(), "<p>same page</p>")
	result, _ := c.ExtractPage(context.Background(), "<p>same page</p>")
	require.NotNil(t, result)
	assert.Equal(t, 1, calls)
}
