// Package events carries page-change notifications between searcher
// instances over Kafka.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/kafka"
	"github.com/google/uuid"
)

type ChangeType string

const (
	ChangeSaved    ChangeType = "saved"
	ChangeImported ChangeType = "imported"
)

// PageChanged is published after a page was written to the store.
type PageChanged struct {
	EventID    string     `json:"event_id"`
	Source     string     `json:"source"`
	Type       ChangeType `json:"type"`
	Collection string     `json:"collection"`
	PageID     string     `json:"page_id"`
	Version    int        `json:"version"`
	Author     string     `json:"author"`
	At         time.Time  `json:"at"`
}

// Publisher announces page changes made by this instance.
type Publisher struct {
	producer kafka.Publisher
	source   string
	logger   *slog.Logger
}

// NewPublisher creates a Publisher. source identifies this instance so it can
// ignore its own events.
func NewPublisher(producer kafka.Publisher, source string) *Publisher {
	return &Publisher{
		producer: producer,
		source:   source,
		logger:   slog.Default().With("component", "page-events"),
	}
}

// PageChanged publishes a change keyed by collection so that changes to one
// collection stay ordered.
func (p *Publisher) PageChanged(ctx context.Context, change PageChanged) error {
	if change.EventID == "" {
		change.EventID = uuid.NewString()
	}
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}
	change.Source = p.source
	if err := p.producer.Publish(ctx, kafka.Event{Key: change.Collection, Value: change}); err != nil {
		return fmt.Errorf("publishing page change %s: %w", change.PageID, err)
	}
	p.logger.Debug("page change published",
		"collection", change.Collection,
		"page_id", change.PageID,
		"version", change.Version,
	)
	return nil
}

// Refresher reloads one page of a cached index from the store.
type Refresher interface {
	RefreshPage(ctx context.Context, collection, pageID string) error
}

// HandlePageChanged returns a Kafka handler that refreshes pages changed by
// other instances. Events from self are ignored; undecodable messages are
// logged and dropped.
func HandlePageChanged(refresher Refresher, self string) kafka.MessageHandler {
	logger := slog.Default().With("component", "page-events")
	return func(ctx context.Context, key []byte, value []byte) error {
		change, err := kafka.DecodeJSON[PageChanged](value)
		if err != nil {
			logger.Error("failed to decode page change", "error", err, "key", string(key))
			return nil
		}
		if change.Source == self {
			return nil
		}
		if err := refresher.RefreshPage(ctx, change.Collection, change.PageID); err != nil {
			return fmt.Errorf("refreshing page %s/%s: %w", change.Collection, change.PageID, err)
		}
		logger.Info("page refreshed from remote change",
			"collection", change.Collection,
			"page_id", change.PageID,
			"version", change.Version,
			"source", change.Source,
		)
		return nil
	}
}
