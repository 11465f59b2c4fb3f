package kafka

import "testing"

type pageChange struct {
	PageID  string `json:"page_id"`
	Version int    `json:"version"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[pageChange]([]byte(`{"page_id":"p-0001.xml","version":3}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.PageID != "p-0001.xml" || got.Version != 3 {
		t.Errorf("got %+v", got)
	}
	if _, err := DecodeJSON[pageChange]([]byte("not json")); err == nil {
		t.Error("expected decode error")
	}
}
