package ai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"visatrack/internal/model"
	"visatrack/internal/schema"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
const defaultModel = "gemini-2.0-flash"

const analysisCacheSize = 128
const analysisCacheTTL = time.Hour

// Client talks to the generative model API for document analysis and
// report writing. The model is opaque; its responses are JSON that must
// pass schema validation before anything downstream trusts them.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	validator  *schema.Compiler
	log        *zap.Logger

	// analysisCache keys on the document content hash so re-analyzing an
	// unchanged upload does not cost another model call.
	analysisCache *expirable.LRU[string, *AnalysisResult]
}

func NewClient(apiKey string, validator *schema.Compiler, log *zap.Logger) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		apiKey:        apiKey,
		model:         defaultModel,
		baseURL:       defaultBaseURL,
		validator:     validator,
		log:           log,
		analysisCache: expirable.NewLRU[string, *AnalysisResult](analysisCacheSize, nil, analysisCacheTTL),
	}
}

// AnalysisResult is a validated document classifier verdict
type AnalysisResult struct {
	DocumentType  string                 `json:"documentType"`
	Status        model.DocumentStatus   `json:"status"`
	Issues        []string               `json:"issues,omitempty"`
	ExtractedData map[string]interface{} `json:"extractedData,omitempty"`
	Confidence    float64                `json:"confidence,omitempty"`
}

// Report is a validated progress report
type Report struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations,omitempty"`
	RiskFactors     []string `json:"riskFactors,omitempty"`
}

// AnalyzeDocument classifies an uploaded document against its expected
// type. A missing API key degrades to an INVALID verdict instead of
// failing the upload.
func (c *Client) AnalyzeDocument(ctx context.Context, fileBase64, mimeType, expectedType string) (*AnalysisResult, error) {
	if c.apiKey == "" {
		c.log.Warn("Document analysis requested without API key configured")
		return &AnalysisResult{
			Status: model.DocumentInvalid,
			Issues: []string{"document analysis service not configured"},
		}, nil
	}

	cacheKey := analysisKey(fileBase64, mimeType, expectedType)
	if cached, ok := c.analysisCache.Get(cacheKey); ok {
		return cached, nil
	}

	prompt := fmt.Sprintf(`You are an expert visa document analyst.
Analyze the attached document.

Expected document type: %q

Tasks:
1. Verify the document matches the expected type.
2. Check for quality issues (blurry, cut off, low resolution).
3. Extract key information relevant to this document type.

Return ONLY a JSON object with this structure:
{
  "documentType": string,
  "status": "VALID" or "INVALID",
  "issues": string[],
  "extractedData": object,
  "confidence": number between 0 and 1
}`, expectedType)

	parts := []map[string]interface{}{
		{"text": prompt},
		{"inline_data": map[string]interface{}{
			"mime_type": mimeType,
			"data":      fileBase64,
		}},
	}

	raw, err := c.generate(ctx, parts)
	if err != nil {
		return nil, err
	}

	if err := c.validator.ValidateNamed(ctx, "document_analysis", raw); err != nil {
		return nil, fmt.Errorf("model returned malformed analysis: %w", err)
	}

	var result AnalysisResult
	if err := remarshal(raw, &result); err != nil {
		return nil, err
	}
	c.analysisCache.Add(cacheKey, &result)
	return &result, nil
}

func analysisKey(fileBase64, mimeType, expectedType string) string {
	h := sha256.New()
	h.Write([]byte(mimeType))
	h.Write([]byte{0})
	h.Write([]byte(expectedType))
	h.Write([]byte{0})
	h.Write([]byte(fileBase64))
	return hex.EncodeToString(h.Sum(nil))
}

// GenerateReport writes a progress report for an application
func (c *Client) GenerateReport(ctx context.Context, app model.Application, milestones []model.Milestone, documents []model.Document) (*Report, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("report service not configured")
	}

	var docSummary strings.Builder
	for _, d := range documents {
		fmt.Fprintf(&docSummary, "- %s (%s): %s\n", d.Name, d.Type, d.Status)
	}
	var msSummary strings.Builder
	for _, m := range milestones {
		fmt.Fprintf(&msSummary, "- %s: %s, planned %s\n", m.Label, m.Status, m.PlannedDate.Format("2006-01-02"))
	}

	prompt := fmt.Sprintf(`You are an expert visa application consultant.

Application:
- Visa type: %s
- Status: %s
- Readiness score: %d%%

Milestones:
%s
Documents:
%s
Write a professional progress report for the applicant.

Return ONLY a JSON object with this structure:
{
  "summary": string,
  "recommendations": string[],
  "riskFactors": string[]
}`, app.VisaType, app.LifecycleStatus, app.CompletionScore, msSummary.String(), docSummary.String())

	raw, err := c.generate(ctx, []map[string]interface{}{{"text": prompt}})
	if err != nil {
		return nil, err
	}

	if err := c.validator.ValidateNamed(ctx, "application_report", raw); err != nil {
		return nil, fmt.Errorf("model returned malformed report: %w", err)
	}

	var report Report
	if err := remarshal(raw, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// generate calls the model API and decodes the first candidate's text as a
// JSON object, stripping markdown fences the model sometimes adds.
func (c *Client) generate(ctx context.Context, parts []map[string]interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": parts},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model request failed: status %d", resp.StatusCode)
	}

	var apiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}
	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("model returned no candidates")
	}

	text := apiResp.Candidates[0].Content.Parts[0].Text
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("model returned non-JSON output: %w", err)
	}
	return raw, nil
}

func remarshal(raw map[string]interface{}, out interface{}) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to remarshal: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}
	return nil
}
