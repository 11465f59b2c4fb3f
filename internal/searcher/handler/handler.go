package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/chapter"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/navigation"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/page"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/session"
	"github.com/Adithya-Monish-Kumar-K/drc-search/internal/view"
	apperrors "github.com/Adithya-Monish-Kumar-K/drc-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drc-search/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Handler serves the collection API.
type Handler struct {
	cache     *cache.Cache
	chapters  chapter.Table
	sessions  session.Store
	collector *analytics.Collector
	presenter view.Presenter
	logger    *slog.Logger

	mu sync.Mutex
	// cursors are keyed by collection and user. They are dropped when the
	// collection's index is rebuilt or invalidated.
	cursors map[cursorKey]*navigation.Cursor
}

type cursorKey struct {
	collection string
	user       string
}

type Option func(*Handler)

func WithChapters(t chapter.Table) Option {
	return func(h *Handler) { h.chapters = t }
}

func WithSessions(s session.Store) Option {
	return func(h *Handler) { h.sessions = s }
}

func WithCollector(c *analytics.Collector) Option {
	return func(h *Handler) { h.collector = c }
}

func WithPresenter(p view.Presenter) Option {
	return func(h *Handler) { h.presenter = p }
}

func New(c *cache.Cache, opts ...Option) *Handler {
	h := &Handler{
		cache:     c,
		sessions:  session.NewMemoryStore(),
		presenter: view.Default,
		cursors:   make(map[cursorKey]*navigation.Cursor),
		logger:    slog.Default().With("component", "collection-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the API under /api/v1/collections/{collection}. Page ids
// contain slashes and must be path-escaped.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1/collections/{collection}", func(r chi.Router) {
		r.Post("/build", h.Build)
		r.Post("/invalidate", h.Invalidate)
		r.Get("/search", h.Search)
		r.Get("/chapters", h.Chapters)
		r.Get("/pages/{id}", h.Page)
		r.Post("/pages/{id}/tags", h.AddAnnotation)
		r.Get("/cursor", h.Cursor)
		r.Post("/cursor/next", h.CursorNext)
		r.Post("/cursor/previous", h.CursorPrevious)
		r.Post("/cursor/select/{id}", h.CursorSelect)
	})
}

// Build builds the index or returns the cached one; ?reload=true forces a
// rebuild. A build shared with other requests keeps running when this client
// disconnects; it is cancelled once no request waits for it.
func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	reload, _ := strconv.ParseBool(r.URL.Query().Get("reload"))

	start := time.Now()
	previous, _ := h.cache.Lookup(collection)
	progress := indexer.NewLogProgress(context.WithoutCancel(r.Context()), logger.FromContext(r.Context()), collection, 0)
	var (
		idx *indexer.Index
		err error
	)
	if reload {
		idx, err = h.cache.Reload(r.Context(), collection, progress)
	} else {
		idx, err = h.cache.Get(r.Context(), collection, progress)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if idx != previous {
		h.DropCursors(collection)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"collection":  collection,
		"pages":       idx.Len(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	h.cache.Invalidate(collection)
	h.DropCursors(collection)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// DropCursors forgets every cursor of collection. Call it when the
// collection's index changes.
func (h *Handler) DropCursors(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key := range h.cursors {
		if key.collection == collection {
			delete(h.cursors, key)
		}
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	q, pages, ok := h.search(w, r, collection)
	if !ok {
		return
	}
	summaries := make([]pageSummary, len(pages))
	for i, p := range pages {
		summaries[i] = h.summarize(p)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"term":  q.Term,
		"scope": q.Scope.String(),
		"count": len(pages),
		"label": view.ResultCount(len(pages)),
		"pages": summaries,
	})
}

// Chapters returns search results grouped by chapter as table rows.
func (h *Handler) Chapters(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	q, pages, ok := h.search(w, r, collection)
	if !ok {
		return
	}
	groups := chapter.GroupByChapter(pages, h.chapters)
	rows := view.Rows(groups)
	out := make([]rowJSON, len(rows))
	for i, row := range rows {
		out[i] = rowJSON{Columns: h.presenter.Columns(row)}
		switch row.Kind() {
		case view.RowChapter:
			out[i].Kind = "chapter"
		case view.RowPage:
			out[i].Kind = "page"
			out[i].ID = row.Page().ID
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"term":     q.Term,
		"scope":    q.Scope.String(),
		"count":    len(pages),
		"label":    view.ResultCount(len(pages)),
		"chapters": len(groups),
		"rows":     out,
	})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, collection string) (*parser.Query, []*page.Page, bool) {
	start := time.Now()
	q, err := parser.Parse(r.URL.Query().Get("q"), r.URL.Query().Get("scope"))
	if err != nil {
		h.writeError(w, r, err)
		return nil, nil, false
	}
	pages, err := h.cache.Search(r.Context(), collection, q.Term, q.Scope)
	if err != nil {
		h.writeError(w, r, err)
		return nil, nil, false
	}
	latency := time.Since(start)
	logger.FromContext(r.Context()).Info("search completed",
		"collection", collection,
		"term", q.Term,
		"scope", q.Scope.String(),
		"hits", len(pages),
		"latency_ms", latency.Milliseconds(),
	)
	if h.collector != nil {
		h.collector.TrackSearch(analytics.SearchEvent{
			Collection: collection,
			Scope:      q.Scope.String(),
			Term:       q.Term,
			Hits:       len(pages),
			LatencyMs:  latency.Milliseconds(),
			UserID:     logger.UserFromContext(r.Context()),
			RequestID:  chimw.GetReqID(r.Context()),
			Timestamp:  time.Now().UTC(),
		})
	}
	return q, pages, true
}

func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id, err := pageID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.lookupPage(collection, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.detail(p))
}

// AddAnnotation attaches a tag or comment authored by the requesting user.
func (h *Handler) AddAnnotation(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	user := logger.UserFromContext(r.Context())
	if user == "" {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusUnauthorized, "header %s is required", "X-User-ID"))
		return
	}
	id, err := pageID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req parser.Annotation
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid JSON body"))
		return
	}
	kind, err := req.Validate()
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	updated, err := h.cache.Update(r.Context(), collection, id, func(p *page.Page) error {
		var added bool
		if kind == page.TagKindComment {
			added = p.AddComment(req.Label, user)
		} else {
			added = p.AddTag(req.Label, user)
		}
		if !added {
			return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusConflict, "%s %q already present", kind, req.Label)
		}
		return nil
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("page annotated",
		"collection", collection,
		"page_id", id,
		"kind", kind.String(),
		"version", updated.Version,
	)
	if h.collector != nil {
		h.collector.TrackAnnotate(analytics.AnnotateEvent{
			Collection: collection,
			PageID:     id,
			Kind:       kind.String(),
			UserID:     user,
			Timestamp:  time.Now().UTC(),
		})
	}
	h.writeJSON(w, http.StatusCreated, h.detail(updated))
}

func (h *Handler) Cursor(w http.ResponseWriter, r *http.Request) {
	h.moveCursor(w, r, func(*navigation.Cursor) bool { return true })
}

func (h *Handler) CursorNext(w http.ResponseWriter, r *http.Request) {
	h.moveCursor(w, r, func(c *navigation.Cursor) bool {
		c.Next()
		return true
	})
}

func (h *Handler) CursorPrevious(w http.ResponseWriter, r *http.Request) {
	h.moveCursor(w, r, func(c *navigation.Cursor) bool {
		c.Previous()
		return true
	})
}

func (h *Handler) CursorSelect(w http.ResponseWriter, r *http.Request) {
	id, err := pageID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.moveCursor(w, r, func(c *navigation.Cursor) bool { return c.SelectByID(id) })
}

func (h *Handler) moveCursor(w http.ResponseWriter, r *http.Request, move func(*navigation.Cursor) bool) {
	collection := chi.URLParam(r, "collection")
	user := logger.UserFromContext(r.Context())
	c, err := h.cursor(r.Context(), collection, user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !move(c) {
		h.writeError(w, r, apperrors.New(apperrors.ErrPageNotFound, http.StatusNotFound, "page not in collection"))
		return
	}
	current, ok := c.Current()
	if !ok {
		h.writeError(w, r, apperrors.ErrEmptyCollection)
		return
	}
	// The cursor may hold a page that was since replaced by an edit.
	p, err := h.lookupPage(collection, current.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if user != "" {
		if err := h.sessions.SetLatestPage(r.Context(), collection, user, p.ID); err != nil {
			logger.FromContext(r.Context()).Warn("failed to remember last page", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"index": c.Index(),
		"total": c.Len(),
		"page":  h.detail(p),
	})
}

// cursor returns the cursor of user, creating it at the last visited page.
func (h *Handler) cursor(ctx context.Context, collection, user string) (*navigation.Cursor, error) {
	key := cursorKey{collection: collection, user: user}
	h.mu.Lock()
	c, ok := h.cursors[key]
	h.mu.Unlock()
	if ok {
		return c, nil
	}

	idx, ok := h.cache.Lookup(collection)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrSourceUnavailable, http.StatusServiceUnavailable, "index of %s not built", collection)
	}
	latest := ""
	if user != "" {
		var err error
		if latest, err = h.sessions.LatestPage(ctx, collection, user); err != nil {
			logger.FromContext(ctx).Warn("failed to read last page", "error", err)
		}
	}
	c = navigation.New(idx.Pages())
	if _, err := c.SelectInitial(latest); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.cursors[key]; ok {
		return existing, nil
	}
	h.cursors[key] = c
	return c, nil
}

func (h *Handler) lookupPage(collection, id string) (*page.Page, error) {
	idx, ok := h.cache.Lookup(collection)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrSourceUnavailable, http.StatusServiceUnavailable, "index of %s not built", collection)
	}
	p, ok := idx.Page(id)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrPageNotFound, http.StatusNotFound, "page %s not found", id)
	}
	return p, nil
}

func pageID(r *http.Request) (string, error) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil || id == "" {
		return "", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid page id")
	}
	return id, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
