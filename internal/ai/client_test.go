package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"visatrack/internal/model"
	"visatrack/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(t *testing.T, modelText string) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]interface{}{
						{"text": modelText},
					},
				}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key", schema.NewCompilerWithCache(16), zap.NewNop())
	c.baseURL = srv.URL
	return c
}

func TestClient_AnalyzeDocument(t *testing.T) {
	c := testClient(t, "```json\n{\"documentType\": \"passport\", \"status\": \"VALID\", \"issues\": [], \"confidence\": 0.95}\n```")

	result, err := c.AnalyzeDocument(context.Background(), "aGVsbG8=", "image/png", "passport")
	require.NoError(t, err)
	assert.Equal(t, "passport", result.DocumentType)
	assert.Equal(t, model.DocumentValid, result.Status)
	assert.Empty(t, result.Issues)
	assert.InDelta(t, 0.95, result.Confidence, 0.001)
}

func TestClient_AnalyzeDocument_CachesByContent(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]interface{}{
						{"text": `{"documentType": "passport", "status": "VALID", "issues": []}`},
					},
				}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key", schema.NewCompilerWithCache(16), zap.NewNop())
	c.baseURL = srv.URL

	_, err := c.AnalyzeDocument(context.Background(), "aGVsbG8=", "image/png", "passport")
	require.NoError(t, err)
	_, err = c.AnalyzeDocument(context.Background(), "aGVsbG8=", "image/png", "passport")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// Different expected type misses the cache.
	_, err = c.AnalyzeDocument(context.Background(), "aGVsbG8=", "image/png", "visa")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestClient_AnalyzeDocument_RejectsMalformedResponse(t *testing.T) {
	// Missing the required status field
	c := testClient(t, `{"documentType": "passport"}`)

	_, err := c.AnalyzeDocument(context.Background(), "aGVsbG8=", "image/png", "passport")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed analysis")
}

func TestClient_AnalyzeDocument_RejectsNonJSON(t *testing.T) {
	c := testClient(t, "The document looks fine to me.")

	_, err := c.AnalyzeDocument(context.Background(), "aGVsbG8=", "image/png", "passport")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-JSON")
}

func TestClient_AnalyzeDocument_NoAPIKey(t *testing.T) {
	c := NewClient("", schema.NewCompilerWithCache(16), zap.NewNop())

	result, err := c.AnalyzeDocument(context.Background(), "aGVsbG8=", "image/png", "passport")
	require.NoError(t, err)
	assert.Equal(t, model.DocumentInvalid, result.Status)
	assert.NotEmpty(t, result.Issues)
}

func TestClient_GenerateReport(t *testing.T) {
	c := testClient(t, `{"summary": "On track.", "recommendations": ["Book biometrics"], "riskFactors": []}`)

	app := model.Application{
		VisaType:        "uk_global_talent",
		LifecycleStatus: model.StatusSubmittedWaiting,
		CompletionScore: 100,
	}
	report, err := c.GenerateReport(context.Background(), app, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "On track.", report.Summary)
	assert.Equal(t, []string{"Book biometrics"}, report.Recommendations)
}

func TestClient_GenerateReport_NoAPIKey(t *testing.T) {
	c := NewClient("", schema.NewCompilerWithCache(16), zap.NewNop())

	_, err := c.GenerateReport(context.Background(), model.Application{}, nil, nil)
	require.Error(t, err)
}
