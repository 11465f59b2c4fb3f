package page

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// TagKind separates plain tags from free-text comments. Both live in the same
// per-page annotation list.
type TagKind int

const (
	TagKindTag TagKind = iota
	TagKindComment
)

func (k TagKind) String() string {
	if k == TagKindComment {
		return "comment"
	}
	return "tag"
}

// ParseTagKind maps "comment" to TagKindComment and anything else to TagKindTag.
func ParseTagKind(s string) TagKind {
	if strings.EqualFold(strings.TrimSpace(s), "comment") {
		return TagKindComment
	}
	return TagKindTag
}

// Tag is an author-attributed annotation. Tags are immutable once created.
type Tag struct {
	Label    string
	AuthorID string
	Kind     TagKind
}

func (t Tag) String() string {
	return t.Label
}

// Page is one scanned document unit.
type Page struct {
	ID     string
	Volume int
	Number int
	Words  []*Word
	Tags   []Tag
	// Edits counts word corrections applied since the page was loaded.
	// Tag and comment additions are not counted.
	Edits int
	// Version is the store revision this page was read at.
	Version int
}

// CorrectWord applies a correction to the word at index i.
func (p *Page) CorrectWord(i int, text, author string, at time.Time) error {
	if i < 0 || i >= len(p.Words) {
		return fmt.Errorf("%w: %d of %d in page %s", ErrWordIndex, i, len(p.Words), p.ID)
	}
	p.Words[i].Correct(text, author, at)
	p.Edits++
	return nil
}

// AddTag attaches a tag. Blank labels and exact duplicates are rejected.
func (p *Page) AddTag(label, author string) bool {
	return p.annotate(Tag{Label: strings.TrimSpace(label), AuthorID: author, Kind: TagKindTag})
}

// AddComment attaches a comment. Blank text and exact duplicates are rejected.
func (p *Page) AddComment(text, author string) bool {
	return p.annotate(Tag{Label: strings.TrimSpace(text), AuthorID: author, Kind: TagKindComment})
}

func (p *Page) annotate(t Tag) bool {
	if t.Label == "" {
		return false
	}
	for _, existing := range p.Tags {
		if existing == t {
			return false
		}
	}
	p.Tags = append(p.Tags, t)
	return true
}

// IsEdited reports whether any word was corrected since load.
func (p *Page) IsEdited() bool {
	return p.Edits > 0
}

// Text joins the current word texts with sep.
func (p *Page) Text(sep string) string {
	var b strings.Builder
	for i, w := range p.Words {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString(w.Text())
	}
	return b.String()
}

// FullText is the page text reconstructed from its words.
func (p *Page) FullText() string {
	return p.Text(" ")
}

// LastModified is the newest word timestamp, or the zero time for a page
// without words. It walks every word; memoize per snapshot when rendering.
func (p *Page) LastModified() time.Time {
	var latest time.Time
	for _, w := range p.Words {
		if ts := w.LastModified(); ts.After(latest) {
			latest = ts
		}
	}
	return latest
}

// Labels returns the labels of annotations of the given kind, in insertion order.
func (p *Page) Labels(kind TagKind) []string {
	labels := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		if t.Kind == kind {
			labels = append(labels, t.Label)
		}
	}
	return labels
}

// TagSummary lists tag labels separated by ", ". Comments are excluded.
func (p *Page) TagSummary() string {
	return strings.Join(p.Labels(TagKindTag), ", ")
}

func (p *Page) CommentSummary() string {
	return strings.Join(p.Labels(TagKindComment), ", ")
}

// FileName is the last path element of the page id.
func (p *Page) FileName() string {
	return p.ID[strings.LastIndex(p.ID, "/")+1:]
}

// Preview returns the first n runes of the "|"-joined text followed by "...".
func (p *Page) Preview(n int) string {
	text := p.Text("|")
	if utf8.RuneCountInString(text) <= n {
		return text + "..."
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}

func (p *Page) String() string {
	return p.ID
}

// Clone returns a deep copy of p. Mutating the copy leaves p untouched.
func (p *Page) Clone() *Page {
	c := *p
	c.Words = make([]*Word, len(p.Words))
	for i, w := range p.Words {
		c.Words[i] = &Word{history: History{entries: w.history.Entries()}}
	}
	c.Tags = append([]Tag(nil), p.Tags...)
	return &c
}
