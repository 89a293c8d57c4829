package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rzbill/logwindow/internal/logstore"
	"github.com/rzbill/logwindow/internal/message"
	"github.com/rzbill/logwindow/pkg/log"
)

const maxReportBody = 1 << 20

// MessagesController exposes the log store over HTTP.
type MessagesController struct {
	store  *logstore.Store
	logger log.Logger
}

// NewMessagesController creates a controller backed by store.
func NewMessagesController(store *logstore.Store, logger log.Logger) *MessagesController {
	return &MessagesController{store: store, logger: logger}
}

// RegisterRoutes mounts the message endpoints on r.
func (c *MessagesController) RegisterRoutes(r chi.Router) {
	r.Route("/v1/messages", func(r chi.Router) {
		r.Get("/", c.handleLatest)
		r.Post("/", c.handleReport)
		r.Get("/{key}", c.handleGet)
		r.Post("/{key}/protect", c.handleProtect)
		r.Delete("/{key}/protect", c.handleUnprotect)
	})
	r.Get("/v1/count", c.handleCount)
	r.Post("/v1/clear", c.handleClear)
}

// handleReport records one occurrence. Empty or ignored messages are
// accepted and dropped.
func (c *MessagesController) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportReq
	req.Severity = severityField(message.Unknown)
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReportBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := c.store.Report(r.Context(), req.params()); err != nil {
		c.logger.Warn("report failed", log.Err(err))
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleLatest returns a page of the window.
//
// Query: limit, severity (comma separated names or numbers), before, after,
// search, regex=1 to treat search as a regular expression. An empty page for
// a cursor that is no longer in the window is flagged stale.
func (c *MessagesController) handleLatest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := logstore.LatestOptions{
		Limit:  parseLimit(q.Get("limit")),
		Before: q.Get("before"),
		After:  q.Get("after"),
	}
	if v := q.Get("severity"); v != "" {
		sevs, err := message.ParseSeverities(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Severities = sevs
	}
	if v := strings.TrimSpace(q.Get("search")); v != "" {
		kind := logstore.SearchSubstring
		if parseBool(q.Get("regex")) {
			kind = logstore.SearchPattern
		}
		opts.Search = &logstore.Search{Kind: kind, Value: v}
	}

	rows, err := c.store.Latest(r.Context(), opts)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	total, err := c.store.Count(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	resp := latestResp{Messages: rows, Total: total}
	if cursor := firstNonEmpty(opts.After, opts.Before); cursor != "" && len(rows) == 0 {
		in, err := c.store.InWindow(r.Context(), cursor)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		resp.Stale = !in
	}
	writeJSON(w, resp)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *MessagesController) handleGet(w http.ResponseWriter, r *http.Request) {
	m, err := c.store.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, m)
}

func (c *MessagesController) handleProtect(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	ok, err := c.store.Protect(r.Context(), key)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	writeJSON(w, protectResp{Key: key, Protected: true})
}

func (c *MessagesController) handleUnprotect(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, err := c.store.Unprotect(r.Context(), key); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, protectResp{Key: key, Protected: false})
}

func (c *MessagesController) handleCount(w http.ResponseWriter, r *http.Request) {
	n, err := c.store.Count(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, countResp{Count: n})
}

// handleClear drops unprotected messages; all=1 drops everything.
func (c *MessagesController) handleClear(w http.ResponseWriter, r *http.Request) {
	var err error
	if parseBool(r.URL.Query().Get("all")) {
		err = c.store.ClearAll(r.Context())
	} else {
		err = c.store.Clear(r.Context())
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	c.logger.Info("store cleared", log.Bool("all", parseBool(r.URL.Query().Get("all"))))
	writeNoContent(w)
}
