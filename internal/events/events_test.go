package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/kafka"
)

type capturePublisher struct {
	events []kafka.Event
	err    error
}

func (c *capturePublisher) Publish(ctx context.Context, event kafka.Event) error {
	c.events = append(c.events, event)
	return c.err
}

type recordingRefresher struct {
	refreshed []string
	err       error
}

func (r *recordingRefresher) RefreshPage(ctx context.Context, collection, pageID string) error {
	r.refreshed = append(r.refreshed, collection+"/"+pageID)
	return r.err
}

func TestPublisherStampsEvent(t *testing.T) {
	producer := &capturePublisher{}
	pub := NewPublisher(producer, "instance-a")

	err := pub.PageChanged(context.Background(), PageChanged{
		Type:       ChangeSaved,
		Collection: "vol4",
		PageID:     "p-0001.xml",
		Version:    2,
	})
	if err != nil {
		t.Fatalf("PageChanged: %v", err)
	}
	if len(producer.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(producer.events))
	}
	ev := producer.events[0]
	if ev.Key != "vol4" {
		t.Errorf("key = %q, want collection", ev.Key)
	}
	change := ev.Value.(PageChanged)
	if change.EventID == "" || change.At.IsZero() || change.Source != "instance-a" {
		t.Errorf("event not stamped: %+v", change)
	}

	producer.err = errors.New("broker down")
	if err := pub.PageChanged(context.Background(), PageChanged{PageID: "x"}); err == nil {
		t.Error("expected publish error")
	}
}

func TestHandlePageChanged(t *testing.T) {
	refresher := &recordingRefresher{}
	handler := HandlePageChanged(refresher, "instance-a")

	encode := func(c PageChanged) []byte {
		data, err := json.Marshal(c)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	ctx := context.Background()
	if err := handler(ctx, nil, encode(PageChanged{Source: "instance-a", Collection: "vol4", PageID: "own"})); err != nil {
		t.Fatalf("own event: %v", err)
	}
	if err := handler(ctx, nil, encode(PageChanged{Source: "instance-b", Collection: "vol4", PageID: "p1"})); err != nil {
		t.Fatalf("remote event: %v", err)
	}
	if err := handler(ctx, nil, []byte("{broken")); err != nil {
		t.Fatalf("undecodable messages must be dropped, got %v", err)
	}
	if len(refresher.refreshed) != 1 || refresher.refreshed[0] != "vol4/p1" {
		t.Errorf("refreshed = %v", refresher.refreshed)
	}

	refresher.err = errors.New("store down")
	if err := handler(ctx, nil, encode(PageChanged{Source: "instance-b", Collection: "vol4", PageID: "p2"})); err == nil {
		t.Error("refresh failure must be returned so the message is not committed")
	}
}
