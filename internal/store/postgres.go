package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/events"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/resilience"
	"github.com/lib/pq"
)

const (
	listIDsQuery = `SELECT doc_id FROM page_documents WHERE collection_id = $1 ORDER BY doc_id`

	fetchQuery = `SELECT doc_id, content FROM page_documents
		WHERE collection_id = $1 AND doc_id = ANY($2)`

	reloadQuery = `SELECT content FROM page_documents WHERE collection_id = $1 AND doc_id = $2`

	// A conflicting row is only updated while its version is unchanged; no
	// returned row means another writer got there first.
	saveQuery = `INSERT INTO page_documents (collection_id, doc_id, content, version, updated_at)
		VALUES ($1, $2, $3, $4 + 1, NOW())
		ON CONFLICT (collection_id, doc_id) DO UPDATE
			SET content = EXCLUDED.content,
			    version = page_documents.version + 1,
			    updated_at = NOW()
			WHERE page_documents.version = $4
		RETURNING version`

	putQuery = `INSERT INTO page_documents (collection_id, doc_id, content, version, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (collection_id, doc_id) DO UPDATE
			SET content = EXCLUDED.content,
			    version = EXCLUDED.version,
			    updated_at = NOW()`
)

// PostgresStore keeps page documents in the page_documents table. Reads are
// retried with backoff and all calls pass through a circuit breaker.
type PostgresStore struct {
	db        *postgres.Client
	retry     resilience.RetryConfig
	breaker   *resilience.CircuitBreaker
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a PostgresStore.
type Option func(*PostgresStore)

// WithPublisher announces every successful Save on Kafka.
func WithPublisher(p *events.Publisher) Option {
	return func(s *PostgresStore) { s.publisher = p }
}

// WithMetrics records saves and breaker state.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *PostgresStore) { s.metrics = m }
}

func NewPostgresStore(db *postgres.Client, cfg config.StoreConfig, opts ...Option) *PostgresStore {
	s := &PostgresStore{
		db: db,
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.RetryAttempts,
			InitialDelay: cfg.RetryDelay,
		},
		breaker: resilience.NewCircuitBreaker("page-store", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			ResetTimeout:     cfg.ResetTimeout,
		}),
		logger: slog.Default().With("component", "page-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics != nil {
		gauge := s.metrics.CircuitBreakerState
		gauge.WithLabelValues("page-store").Set(float64(resilience.StateClosed))
		s.breaker.OnStateChange(func(name string, to resilience.State) {
			gauge.WithLabelValues(name).Set(float64(to))
		})
	}
	return s
}

// do runs fn through the breaker and retries transient failures.
func (s *PostgresStore) do(ctx context.Context, name string, fn func() error) error {
	err := resilience.Retry(ctx, name, s.retry, func() error {
		return s.breaker.Execute(fn)
	})
	if err != nil && errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("%w: %v", apperrors.ErrSourceUnavailable, err)
	}
	return err
}

func (s *PostgresStore) ListIDs(ctx context.Context, collection string) ([]string, error) {
	var ids []string
	err := s.do(ctx, "list-ids", func() error {
		ids = ids[:0]
		rows, err := s.db.DB.QueryContext(ctx, listIDsQuery, collection)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("listing ids of %s: %w", collection, err)
	}
	return ids, nil
}

func (s *PostgresStore) Fetch(ctx context.Context, collection string, ids []string) ([][]byte, error) {
	found := make(map[string][]byte, len(ids))
	err := s.do(ctx, "fetch", func() error {
		clear(found)
		rows, err := s.db.DB.QueryContext(ctx, fetchQuery, collection, pq.Array(ids))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				id      string
				content []byte
			)
			if err := rows.Scan(&id, &content); err != nil {
				return err
			}
			found[id] = content
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %d documents of %s: %w", len(ids), collection, err)
	}
	out := make([][]byte, len(ids))
	for i, id := range ids {
		out[i] = found[id]
	}
	return out, nil
}

func (s *PostgresStore) ReloadSingle(ctx context.Context, collection, id string) ([]byte, error) {
	var content []byte
	err := s.do(ctx, "reload", func() error {
		err := s.db.DB.QueryRowContext(ctx, reloadQuery, collection, id).Scan(&content)
		if err == sql.ErrNoRows {
			return resilience.Permanent(fmt.Errorf("%w: %s/%s", apperrors.ErrPageNotFound, collection, id))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (s *PostgresStore) Save(ctx context.Context, collection string, p *page.Page) error {
	next := *p
	next.Version = p.Version + 1
	raw, err := next.XML()
	if err != nil {
		return fmt.Errorf("encoding page %s: %w", p.ID, err)
	}

	var stored int
	err = s.do(ctx, "save", func() error {
		err := s.db.DB.QueryRowContext(ctx, saveQuery, collection, p.ID, raw, p.Version).Scan(&stored)
		if err == sql.ErrNoRows {
			return resilience.Permanent(fmt.Errorf("%w: %s read at version %d",
				apperrors.ErrVersionConflict, p.ID, p.Version))
		}
		return err
	})
	if err != nil {
		s.observeSave("error")
		return fmt.Errorf("saving page %s: %w", p.ID, err)
	}
	p.Version = stored
	s.observeSave("ok")

	s.logger.Info("page saved",
		"collection", collection,
		"page_id", p.ID,
		"version", stored,
	)
	if s.publisher != nil {
		change := events.PageChanged{
			Type:       events.ChangeSaved,
			Collection: collection,
			PageID:     p.ID,
			Version:    stored,
			Author:     logger.UserFromContext(ctx),
		}
		if err := s.publisher.PageChanged(ctx, change); err != nil {
			s.logger.Error("page saved but change not published",
				"page_id", p.ID,
				"error", err,
			)
		}
	}
	return nil
}

// Put writes a raw document without a version check. The stored version is
// the one the document declares. Ingestion uses it to load scanned
// collections.
func (s *PostgresStore) Put(ctx context.Context, collection, id string, content []byte) error {
	version := declaredVersion(content)
	err := s.do(ctx, "put", func() error {
		_, err := s.db.DB.ExecContext(ctx, putQuery, collection, id, content, version)
		return err
	})
	if err != nil {
		return fmt.Errorf("storing %s/%s: %w", collection, id, err)
	}
	return nil
}

// Breaker exposes the circuit state for readiness checks.
func (s *PostgresStore) Breaker() *resilience.CircuitBreaker {
	return s.breaker
}

func (s *PostgresStore) observeSave(status string) {
	if s.metrics != nil {
		s.metrics.PageSavesTotal.WithLabelValues(status).Inc()
	}
}
