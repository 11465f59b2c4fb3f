// Package ingestion loads scanned page collections into the document store,
// either by walking a directory or one document at a time over HTTP.
package ingestion

import "time"

// IngestRequest is the JSON body accepted by the ingestion HTTP endpoint.
// Content holds the raw document; page documents are XML.
type IngestRequest struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// IngestResponse is returned to the caller after a document is stored.
type IngestResponse struct {
	Collection string `json:"collection"`
	DocumentID string `json:"document_id"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
}

const (
	KindPage      = "page"
	KindAuxiliary = "auxiliary"
)

// ImportReport summarizes one directory import.
type ImportReport struct {
	Collection string            `json:"collection"`
	Pages      int               `json:"pages"`
	Auxiliary  int               `json:"auxiliary"`
	Rejected   map[string]string `json:"rejected,omitempty"`
	Duration   time.Duration     `json:"duration"`
}

// Stored is the number of documents written.
func (r ImportReport) Stored() int {
	return r.Pages + r.Auxiliary
}
