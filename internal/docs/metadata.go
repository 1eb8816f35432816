package docs

import (
	"fmt"
)

// Metadata describes one uploaded supporting document
type Metadata struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	MIME   string `json:"mime"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256,omitempty"`
}

// NormalizeMetadata normalizes document metadata from a map
func NormalizeMetadata(file map[string]interface{}) Metadata {
	meta := Metadata{}

	if name, ok := file["name"].(string); ok {
		meta.Name = name
	}
	if docType, ok := file["type"].(string); ok {
		meta.Type = docType
	}
	if m, ok := file["mime"].(string); ok {
		meta.MIME = m
	} else if contentType, ok := file["contentType"].(string); ok {
		meta.MIME = contentType
	}
	if size, ok := file["size"].(float64); ok {
		meta.Size = int64(size)
	} else if size, ok := file["size"].(int64); ok {
		meta.Size = size
	} else if size, ok := file["size"].(int); ok {
		meta.Size = int64(size)
	}
	if sha, ok := file["sha256"].(string); ok {
		meta.SHA256 = sha
	}

	return meta
}

// ValidateMetadata validates that document metadata has required fields
func ValidateMetadata(meta Metadata) error {
	if meta.Name == "" {
		return fmt.Errorf("document name is required")
	}
	if meta.Type == "" {
		return fmt.Errorf("document type is required")
	}
	if meta.Size < 0 {
		return fmt.Errorf("document size must be non-negative")
	}
	return nil
}

// ToMap converts Metadata to a map for storage
func (m Metadata) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"name": m.Name,
		"type": m.Type,
		"mime": m.MIME,
		"size": m.Size,
	}
	if m.SHA256 != "" {
		result["sha256"] = m.SHA256
	}
	return result
}
