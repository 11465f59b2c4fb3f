// Package parser turns raw request parameters into validated search and
// annotation requests.
package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
)

// MaxTermLength bounds search terms and annotation labels, in runes.
const MaxTermLength = 256

type Query struct {
	// Term is trimmed with inner whitespace collapsed; case is left to the
	// index. An empty term matches every page.
	Term     string
	Scope    indexer.Scope
	RawQuery string
}

// Parse validates a search term and scope name.
func Parse(rawTerm, scopeName string) (*Query, error) {
	scope, ok := indexer.ParseScope(scopeName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown scope %q", apperrors.ErrInvalidInput, scopeName)
	}
	term := strings.Join(strings.Fields(rawTerm), " ")
	if utf8.RuneCountInString(term) > MaxTermLength {
		return nil, fmt.Errorf("%w: search term longer than %d characters", apperrors.ErrInvalidInput, MaxTermLength)
	}
	return &Query{Term: term, Scope: scope, RawQuery: rawTerm}, nil
}

// Annotation is a request to attach a tag or comment to a page.
type Annotation struct {
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// Validate trims the label and checks kind. The returned TagKind defaults to
// a plain tag when kind is empty.
func (a *Annotation) Validate() (page.TagKind, error) {
	a.Label = strings.TrimSpace(a.Label)
	if a.Label == "" {
		return page.TagKindTag, fmt.Errorf("%w: label is required", apperrors.ErrInvalidInput)
	}
	if utf8.RuneCountInString(a.Label) > MaxTermLength {
		return page.TagKindTag, fmt.Errorf("%w: label longer than %d characters", apperrors.ErrInvalidInput, MaxTermLength)
	}
	switch strings.ToLower(strings.TrimSpace(a.Kind)) {
	case "", "tag":
		return page.TagKindTag, nil
	case "comment":
		return page.TagKindComment, nil
	default:
		return page.TagKindTag, fmt.Errorf("%w: unknown annotation kind %q", apperrors.ErrInvalidInput, a.Kind)
	}
}
