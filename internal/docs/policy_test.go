package docs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadPolicy_ValidateFile(t *testing.T) {
	policy := DefaultPolicy()

	err := policy.ValidateFile("passport.pdf", "application/pdf", 2*1024*1024)
	assert.NoError(t, err)

	// Wildcard MIME match
	err = policy.ValidateFile("photo.jpg", "image/jpeg; charset=binary", 500*1024)
	assert.NoError(t, err)

	// Too large
	err = policy.ValidateFile("scan.pdf", "application/pdf", 11*1024*1024)
	assert.Error(t, err)

	// Disallowed type
	err = policy.ValidateFile("malware.exe", "application/octet-stream", 1024)
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	policy := ParsePolicy(map[string]interface{}{
		"maxFileMB":  5.0,
		"mime":       []interface{}{"application/pdf"},
		"extensions": []interface{}{".PDF"},
	})

	assert.Equal(t, 5.0, policy.MaxFileMB)
	assert.Equal(t, []string{"application/pdf"}, policy.MimeTypes)
	assert.Equal(t, []string{"pdf"}, policy.Extensions)

	assert.Error(t, policy.ValidateFile("photo.jpg", "image/jpeg", 1024))
	assert.NoError(t, policy.ValidateFile("form.pdf", "application/pdf", 1024))
}

func TestParsePolicy_NilUsesDefaults(t *testing.T) {
	policy := ParsePolicy(nil)
	require.NotNil(t, policy)
	assert.Equal(t, 10.0, policy.MaxFileMB)
}

func TestRequiredDocuments_UnknownVisaTypeFallsBack(t *testing.T) {
	known := RequiredDocuments("uk_global_talent")
	assert.Contains(t, known, "evidence_portfolio")

	unknown := RequiredDocuments("mars_settlement_visa")
	assert.Equal(t, RequiredDocuments("generic"), unknown)
	assert.NotEmpty(t, unknown)
}

func TestCompletionScore(t *testing.T) {
	// uk_global_talent requires 5 document types
	assert.Equal(t, 0, CompletionScore("uk_global_talent", nil))
	assert.Equal(t, 40, CompletionScore("uk_global_talent", []string{"passport", "cv"}))
	assert.Equal(t, 100, CompletionScore("uk_global_talent", []string{
		"passport", "cv", "personal_statement", "recommendation_letter", "evidence_portfolio",
	}))

	// Case-insensitive matching, duplicates ignored
	assert.Equal(t, 20, CompletionScore("uk_global_talent", []string{"Passport", "PASSPORT"}))

	// Irrelevant types do not count
	assert.Equal(t, 0, CompletionScore("uk_global_talent", []string{"boarding_pass"}))
}

func TestNormalizeMetadata(t *testing.T) {
	meta := NormalizeMetadata(map[string]interface{}{
		"name":        "passport.pdf",
		"type":        "passport",
		"contentType": "application/pdf",
		"size":        float64(2048),
		"sha256":      "abc123",
	})

	assert.Equal(t, "passport.pdf", meta.Name)
	assert.Equal(t, "passport", meta.Type)
	assert.Equal(t, "application/pdf", meta.MIME)
	assert.Equal(t, int64(2048), meta.Size)
	assert.Equal(t, "abc123", meta.SHA256)

	require.NoError(t, ValidateMetadata(meta))
}

func TestValidateMetadata_MissingFields(t *testing.T) {
	err := ValidateMetadata(Metadata{Type: "passport"})
	assert.Error(t, err)

	err = ValidateMetadata(Metadata{Name: "passport.pdf"})
	assert.Error(t, err)
}
