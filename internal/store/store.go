// Package store reads and writes raw page documents. The index consumes the
// Source half; editors use Save and ReloadSingle.
package store

import (
	"context"
	"encoding/xml"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
)

// Store is the persistence collaborator of the page index.
type Store interface {
	ListIDs(ctx context.Context, collection string) ([]string, error)
	// Fetch returns one document per id, in order. Unknown ids yield a nil
	// document rather than an error so one missing page cannot fail a build.
	Fetch(ctx context.Context, collection string, ids []string) ([][]byte, error)
	// Save writes p if the stored version still equals p.Version, then
	// increments p.Version. A stale version fails with ErrVersionConflict.
	Save(ctx context.Context, collection string, p *page.Page) error
	ReloadSingle(ctx context.Context, collection, id string) ([]byte, error)
}

// declaredVersion reads the version attribute of a page document. Anything
// that does not decode as a page counts as version 0.
func declaredVersion(content []byte) int {
	var root struct {
		XMLName xml.Name `xml:"page"`
		Version int      `xml:"version,attr"`
	}
	if err := xml.Unmarshal(content, &root); err != nil {
		return 0
	}
	return root.Version
}
