package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		term    string
		scope   string
		want    string
		scopeOK indexer.Scope
		wantErr bool
	}{
		{"empty matches all", "", "", "", indexer.ScopeAll, false},
		{"whitespace collapsed", "  Anno   1750 ", "all", "Anno 1750", indexer.ScopeAll, false},
		{"tag scope", "letter", "tags", "letter", indexer.ScopeTags, false},
		{"comment scope", "check", "Comments", "check", indexer.ScopeComments, false},
		{"unknown scope", "x", "words", "", indexer.ScopeAll, true},
		{"too long", strings.Repeat("a", MaxTermLength+1), "", "", indexer.ScopeAll, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Parse(tt.term, tt.scope)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if q.Term != tt.want || q.Scope != tt.scopeOK || q.RawQuery != tt.term {
				t.Errorf("got %+v", q)
			}
		})
	}
}

func TestAnnotationValidate(t *testing.T) {
	tests := []struct {
		in      Annotation
		kind    page.TagKind
		label   string
		wantErr bool
	}{
		{Annotation{Label: " letter "}, page.TagKindTag, "letter", false},
		{Annotation{Label: "check date", Kind: "comment"}, page.TagKindComment, "check date", false},
		{Annotation{Label: "x", Kind: "TAG"}, page.TagKindTag, "x", false},
		{Annotation{Label: "   "}, page.TagKindTag, "", true},
		{Annotation{Label: "x", Kind: "note"}, page.TagKindTag, "", true},
	}
	for _, tt := range tests {
		a := tt.in
		kind, err := a.Validate()
		if tt.wantErr {
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("%+v: expected ErrInvalidInput, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || kind != tt.kind || a.Label != tt.label {
			t.Errorf("%+v: kind=%v label=%q err=%v", tt.in, kind, a.Label, err)
		}
	}
}
