// Package page models scanned pages as sequences of words whose every
// correction is kept in an append-only history, together with the tags and
// comments collaborators attach to a page.
package page

import "time"

// OCRAuthor is the author recorded for a word's recognized original text.
const OCRAuthor = "OCR"

// Modification is one entry in a word's edit history.
type Modification struct {
	Text      string
	Author    string
	Timestamp time.Time
}

// History is the append-only, time-ordered record of a word's texts. The last
// entry is the current one.
type History struct {
	entries []Modification
}

// Push appends m. A timestamp older than the current top is raised to the
// top's timestamp so the history stays non-decreasing.
func (h *History) Push(m Modification) {
	if n := len(h.entries); n > 0 && m.Timestamp.Before(h.entries[n-1].Timestamp) {
		m.Timestamp = h.entries[n-1].Timestamp
	}
	h.entries = append(h.entries, m)
}

// Top returns the most recent entry. ok is false for an empty history.
func (h *History) Top() (Modification, bool) {
	if len(h.entries) == 0 {
		return Modification{}, false
	}
	return h.entries[len(h.entries)-1], true
}

func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the history, oldest first.
func (h *History) Entries() []Modification {
	out := make([]Modification, len(h.entries))
	copy(out, h.entries)
	return out
}

// Word is a recognized text token with its full correction history.
type Word struct {
	history History
}

// NewWord creates a word whose history starts with the recognized text.
func NewWord(original string, recognizedAt time.Time) *Word {
	w := &Word{}
	w.history.Push(Modification{Text: original, Author: OCRAuthor, Timestamp: recognizedAt})
	return w
}

// Correct records a new text for the word. Earlier entries are never removed.
func (w *Word) Correct(text, author string, at time.Time) {
	w.history.Push(Modification{Text: text, Author: author, Timestamp: at})
}

// Text is the word's current text.
func (w *Word) Text() string {
	top, _ := w.history.Top()
	return top.Text
}

// LastModified is the timestamp of the word's newest history entry.
func (w *Word) LastModified() time.Time {
	top, _ := w.history.Top()
	return top.Timestamp
}

// History exposes the word's edit history for reading.
func (w *Word) History() *History {
	return &w.history
}
