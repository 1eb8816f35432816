package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	js "github.com/santhosh-tekuri/jsonschema/v5"
)

// Compiler compiles and caches JSON Schemas and validates values against
// them. Model responses are untrusted input; everything they return is
// validated here before the rest of the system sees it.
type Compiler struct {
	compiler     *js.Compiler
	cache        *expirable.LRU[string, *js.Schema]
	refAllowlist []string // Allowed URL patterns for $ref resolution

	mu    sync.RWMutex
	named map[string]map[string]interface{}
}

// NewCompilerWithCache creates a new compiler with cache
func NewCompilerWithCache(maxSize int) *Compiler {
	return NewCompilerWithCacheAndAllowlist(maxSize, nil)
}

// NewCompilerWithCacheAndAllowlist creates a new compiler with cache and $ref allowlist
func NewCompilerWithCacheAndAllowlist(maxSize int, allowlist []string) *Compiler {
	c := js.NewCompiler()
	c.ExtractAnnotations = true

	compiler := &Compiler{
		compiler:     c,
		cache:        expirable.NewLRU[string, *js.Schema](maxSize, nil, time.Hour),
		refAllowlist: allowlist,
		named:        make(map[string]map[string]interface{}),
	}

	compiler.Register("document_analysis", documentAnalysisSchema)
	compiler.Register("application_report", applicationReportSchema)
	return compiler
}

// documentAnalysisSchema is the shape a document classifier response must
// take before its verdict is trusted.
var documentAnalysisSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"documentType", "status"},
	"properties": map[string]interface{}{
		"documentType": map[string]interface{}{"type": "string", "minLength": 1},
		"status": map[string]interface{}{
			"type": "string",
			"enum": []interface{}{"VALID", "INVALID"},
		},
		"issues": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"extractedData": map[string]interface{}{"type": "object"},
		"confidence": map[string]interface{}{
			"type":    "number",
			"minimum": 0,
			"maximum": 1,
		},
	},
	"additionalProperties": false,
}

// applicationReportSchema is the shape a generated progress report must take.
var applicationReportSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"summary"},
	"properties": map[string]interface{}{
		"summary": map[string]interface{}{"type": "string", "minLength": 1},
		"recommendations": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"riskFactors": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
	"additionalProperties": false,
}

// Register adds a named schema to the registry
func (c *Compiler) Register(name string, schema map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.named[name] = schema
}

// ValidateNamed validates a value against a registered schema
func (c *Compiler) ValidateNamed(ctx context.Context, name string, value map[string]interface{}) error {
	c.mu.RLock()
	schema, ok := c.named[name]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown schema: %s", name)
	}
	return c.Validate(ctx, schema, value)
}

// matchesPattern checks if a URL matches an allowlist pattern
// Supports:
// - Exact match: "https://example.com/schema.json"
// - Domain match: "https://example.com/*"
// - Path prefix: "https://example.com/schemas/*"
// - Local file: "file://*"
func matchesPattern(urlStr, pattern string) bool {
	// Exact match
	if urlStr == pattern {
		return true
	}

	// Wildcard pattern
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(urlStr, prefix)
	}

	// Try parsing as URLs for domain matching
	u1, err1 := url.Parse(urlStr)
	u2, err2 := url.Parse(pattern)
	if err1 == nil && err2 == nil {
		// Domain match
		if u1.Host == u2.Host {
			return true
		}
	}

	return false
}

func (c *Compiler) key(schema map[string]interface{}) string {
	b, _ := json.Marshal(schema)
	return string(b)
}

// Prepare compiles and caches a schema
func (c *Compiler) Prepare(ctx context.Context, schema map[string]interface{}) error {
	key := c.key(schema)
	if _, ok := c.cache.Get(key); ok {
		return nil // Already cached
	}

	// Validate $ref URLs against allowlist if configured
	if len(c.refAllowlist) > 0 {
		if err := c.validateRefs(schema); err != nil {
			return fmt.Errorf("$ref validation failed: %w", err)
		}
	}

	// Convert schema to JSON bytes
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	// Add resource to compiler
	// Use a hash-based URL to avoid URL parsing issues with JSON content
	hash := fmt.Sprintf("%x", schemaBytes)
	resourceURL := fmt.Sprintf("mem://schema/%s.json", hash[:16])
	if err := c.compiler.AddResource(resourceURL, bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("failed to add resource: %w", err)
	}

	// Compile schema
	compiled, err := c.compiler.Compile(resourceURL)
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	c.cache.Add(key, compiled)
	return nil
}

// validateRefs recursively validates all $ref URLs in a schema against the allowlist
func (c *Compiler) validateRefs(schema interface{}) error {
	switch v := schema.(type) {
	case map[string]interface{}:
		// Check for $ref
		if ref, ok := v["$ref"].(string); ok {
			if !c.isRefAllowed(ref) {
				return fmt.Errorf("$ref URL not allowed: %s (not in allowlist)", ref)
			}
		}
		// Recursively check nested objects and arrays
		for _, val := range v {
			if err := c.validateRefs(val); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, item := range v {
			if err := c.validateRefs(item); err != nil {
				return err
			}
		}
	}
	return nil
}

// isRefAllowed checks if a $ref URL is allowed by the allowlist
func (c *Compiler) isRefAllowed(refURL string) bool {
	// Empty allowlist means allow all (backward compatible)
	if len(c.refAllowlist) == 0 {
		return true
	}

	// Check against allowlist patterns
	for _, pattern := range c.refAllowlist {
		if matchesPattern(refURL, pattern) {
			return true
		}
	}
	return false
}

// Validate validates a value against a schema
func (c *Compiler) Validate(ctx context.Context, schema map[string]interface{}, value map[string]interface{}) error {
	key := c.key(schema)
	compiled, ok := c.cache.Get(key)
	if !ok {
		// Try to prepare it
		if err := c.Prepare(ctx, schema); err != nil {
			return err
		}
		compiled, _ = c.cache.Get(key)
		if compiled == nil {
			return fmt.Errorf("schema not found in cache after preparation")
		}
	}

	// Convert value to JSON for validation
	valueBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	var valueRaw interface{}
	if err := json.Unmarshal(valueBytes, &valueRaw); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}

	if err := compiled.Validate(valueRaw); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}
