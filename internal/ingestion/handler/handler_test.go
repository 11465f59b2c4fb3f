package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/ingestion/importer"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/store"
	"github.com/go-chi/chi/v5"
)

func TestIngest(t *testing.T) {
	r := chi.NewRouter()
	New(importer.New(store.NewMemoryStore())).Routes(r)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"page", `{"id":"vol4/vol_0004-0001.xml","content":"<page><word original=\"Chur\"/></page>"}`, http.StatusCreated},
		{"auxiliary", `{"id":"vol4/vol_0004-0001.tif","content":"scan"}`, http.StatusCreated},
		{"malformed page", `{"id":"vol4/vol_0004-0002.xml","content":"<page"}`, http.StatusBadRequest},
		{"bad json", `{"id":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/collections/vol4/documents", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestIngestReportsFields(t *testing.T) {
	r := chi.NewRouter()
	New(importer.New(store.NewMemoryStore())).Routes(r)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/collections/vol4/documents", bytes.NewBufferString(`{"id":"","content":""}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Error != "validation failed" || out.Fields["id"] == "" || out.Fields["content"] == "" {
		t.Errorf("response = %+v", out)
	}
}
