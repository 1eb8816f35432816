package docs

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// UploadPolicy constrains supporting-document uploads
type UploadPolicy struct {
	MaxFileMB  float64
	MimeTypes  []string
	Extensions []string
}

// DefaultPolicy is what visa document uploads must satisfy when no
// per-deployment policy is configured.
func DefaultPolicy() *UploadPolicy {
	return &UploadPolicy{
		MaxFileMB:  10,
		MimeTypes:  []string{"application/pdf", "image/*"},
		Extensions: []string{"pdf", "png", "jpg", "jpeg", "webp"},
	}
}

// ParsePolicy parses a map[string]interface{} into an UploadPolicy
func ParsePolicy(policy map[string]interface{}) *UploadPolicy {
	if policy == nil {
		return DefaultPolicy()
	}

	p := DefaultPolicy()

	if val, ok := policy["maxFileMB"].(float64); ok && val > 0 {
		p.MaxFileMB = val
	}

	if mimeVal, ok := policy["mime"].([]interface{}); ok {
		p.MimeTypes = make([]string, 0, len(mimeVal))
		for _, m := range mimeVal {
			if mStr, ok := m.(string); ok {
				p.MimeTypes = append(p.MimeTypes, mStr)
			}
		}
	}

	if extVal, ok := policy["extensions"].([]interface{}); ok {
		p.Extensions = make([]string, 0, len(extVal))
		for _, e := range extVal {
			if eStr, ok := e.(string); ok {
				// Normalize extensions (remove leading dot if present)
				ext := strings.TrimPrefix(eStr, ".")
				p.Extensions = append(p.Extensions, strings.ToLower(ext))
			}
		}
	}

	return p
}

// ValidateFile validates an upload against the policy
func (p *UploadPolicy) ValidateFile(fileName, contentType string, fileSizeBytes int64) error {
	if p == nil {
		return nil // No policy means no restrictions
	}

	if p.MaxFileMB > 0 {
		maxBytes := int64(p.MaxFileMB * 1024 * 1024)
		if fileSizeBytes > maxBytes {
			return fmt.Errorf("file size %d bytes exceeds maximum %d bytes (%.2f MB)",
				fileSizeBytes, maxBytes, p.MaxFileMB)
		}
	}

	if len(p.MimeTypes) > 0 {
		if !p.matchesMimeType(contentType) {
			return fmt.Errorf("content type %s is not allowed. Allowed types: %v",
				contentType, p.MimeTypes)
		}
	}

	if len(p.Extensions) > 0 {
		if !p.matchesExtension(fileName) {
			return fmt.Errorf("file extension is not allowed. Allowed extensions: %v",
				p.Extensions)
		}
	}

	return nil
}

// matchesMimeType checks if contentType matches any of the allowed MIME type patterns
func (p *UploadPolicy) matchesMimeType(contentType string) bool {
	// Parse the content type (handle parameters like "image/png; charset=utf-8")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	for _, allowed := range p.MimeTypes {
		// Support wildcard patterns like "image/*"
		if strings.HasSuffix(allowed, "/*") {
			prefix := strings.TrimSuffix(allowed, "/*")
			if strings.HasPrefix(mediaType, prefix+"/") {
				return true
			}
		} else if mediaType == allowed {
			return true
		}
	}
	return false
}

// matchesExtension checks if fileName has an allowed extension
func (p *UploadPolicy) matchesExtension(fileName string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.ToLower(fileName)), "."))
	if ext == "" {
		return false
	}

	for _, allowed := range p.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// RequiredDocuments lists the document types a visa application needs before
// it can be considered ready. Unknown visa types share a generic list.
func RequiredDocuments(visaType string) []string {
	if docTypes, ok := requiredDocuments[visaType]; ok {
		return docTypes
	}
	return requiredDocuments["generic"]
}

var requiredDocuments = map[string][]string{
	"uk_global_talent": {
		"passport",
		"cv",
		"personal_statement",
		"recommendation_letter",
		"evidence_portfolio",
	},
	"us_h1b": {
		"passport",
		"degree_certificate",
		"employment_letter",
		"lca",
	},
	"schengen_work": {
		"passport",
		"employment_contract",
		"proof_of_accommodation",
		"travel_insurance",
	},
	"generic": {
		"passport",
		"application_form",
	},
}

// CompletionScore derives the document-readiness percentage: the share of
// required document types covered by a valid upload.
func CompletionScore(visaType string, validTypes []string) int {
	required := RequiredDocuments(visaType)
	if len(required) == 0 {
		return 100
	}

	have := make(map[string]bool, len(validTypes))
	for _, t := range validTypes {
		have[strings.ToLower(t)] = true
	}

	matched := 0
	for _, r := range required {
		if have[r] {
			matched++
		}
	}
	return matched * 100 / len(required)
}
