// Package validator checks documents before they reach the store. It
// enforces id and size constraints, parses page documents, and returns
// per-field error details.
package validator

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
)

const (
	MaxIDLength       = 512
	MaxDocumentLength = 8 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateDocument checks a document before storing it under id. Ids ending
// with pageSuffix must parse as page documents; other ids are stored as
// auxiliary files and only size-checked.
func ValidateDocument(id string, content []byte, pageSuffix string) error {
	errs := make(map[string]string)

	switch {
	case strings.TrimSpace(id) == "":
		errs["id"] = "id is required"
	case len(id) > MaxIDLength:
		errs["id"] = fmt.Sprintf("id must be at most %d characters", MaxIDLength)
	case strings.HasPrefix(id, "/") || path.Clean(id) != id || strings.HasPrefix(id, "../"):
		errs["id"] = "id must be a clean relative path"
	}

	switch {
	case len(content) == 0:
		errs["content"] = "content is required"
	case len(content) > MaxDocumentLength:
		errs["content"] = fmt.Sprintf("content must be at most %d bytes", MaxDocumentLength)
	case errs["id"] == "" && strings.HasSuffix(id, pageSuffix):
		if _, err := page.FromXML(content, id); err != nil {
			errs["content"] = err.Error()
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
