package sage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClientWithConfig(HTTPConfig{BaseURL: srv.URL, Timeout: 5 * time.Second})
}

func TestResearchCheck(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/research/check", r.URL.Path)
		var req struct {
			Topic string `json:"topic"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Morning Routine", req.Topic)
		json.NewEncoder(w).Encode(ResearchCheckResult{HasResearch: true, File: "research_morning.md"})
	})

	result, err := client.ResearchCheck(context.Background(), "Morning Routine")
	require.NoError(t, err)
	assert.True(t, result.HasResearch)
	assert.Equal(t, "research_morning.md", result.File)
}

func TestPlan_ErrorEnvelopeIsFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// 200 with an error payload must be treated like a transport failure
		json.NewEncoder(w).Encode(map[string]string{"error": "model overloaded"})
	})

	_, err := client.Plan(context.Background(), "Morning Routine", "US", "$29")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestExecute(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req ExecuteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "plan-payload", req.Plan)
		assert.Equal(t, "en", req.Language)
		json.NewEncoder(w).Encode(ExecuteResult{
			Sections: []Section{
				{Title: "Intro", Content: "..."},
				{Title: "Habits", Content: "..."},
				{Title: "Wrap", Content: "..."},
			},
			SalesPage: "Buy now",
			QAStatus:  QAPass,
		})
	})

	result, err := client.Execute(context.Background(), ExecuteRequest{
		Topic: "Morning Routine", Plan: "plan-payload", Language: "en", Sections: 5,
	})
	require.NoError(t, err)
	assert.Len(t, result.Sections, 3)
	assert.Equal(t, QAPass, result.QAStatus)
}

func TestExecute_EmptySectionsIsFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ExecuteResult{})
	})

	_, err := client.Execute(context.Background(), ExecuteRequest{Topic: "x", Plan: "p"})
	assert.Error(t, err)
}

func TestRewrite(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content     string `json:"content"`
			Instruction string `json:"instruction"`
			Language    string `json:"language"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "make it punchier", req.Instruction)
		json.NewEncoder(w).Encode(map[string]string{"rewritten": "punchy " + req.Content})
	})

	out, err := client.Rewrite(context.Background(), "text", "make it punchier", "en")
	require.NoError(t, err)
	assert.Equal(t, "punchy text", out)
}

func TestFinalizeAndLoad_RoundTrip(t *testing.T) {
	var saved FinalizeRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/content/save":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&saved))
			json.NewEncoder(w).Encode(map[string]string{"savedLocation": "vault/course_morning.md"})
		case "/api/content/get":
			assert.Equal(t, "vault/course_morning.md", r.URL.Query().Get("location"))
			json.NewEncoder(w).Encode(SavedProduct{Sections: saved.Sections, SalesPage: saved.SalesPage})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	sections := []Section{{Title: "A", Content: "one"}, {Title: "B", Content: "two"}}
	loc, err := client.Finalize(context.Background(), FinalizeRequest{
		Topic: "Morning Routine", Sections: sections, SalesPage: "sp",
	})
	require.NoError(t, err)
	require.Equal(t, "vault/course_morning.md", loc)

	product, err := client.Load(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, sections, product.Sections)
	assert.Equal(t, "sp", product.SalesPage)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on
	client := NewHTTPClientWithConfig(HTTPConfig{BaseURL: srv.URL, Timeout: time.Second})

	_, err := client.ResearchCheck(context.Background(), "anything")
	assert.Error(t, err)
}
