package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rzbill/logwindow/internal/message"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// API is a small JSON client for the server's HTTP endpoints.
type API struct {
	baseURL string
	hc      *http.Client
}

// NewAPI returns a client rooted at baseURL.
func NewAPI(baseURL string) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

// ReportRequest is the body accepted by POST /v1/messages.
type ReportRequest struct {
	Severity  string         `json:"severity"`
	Progname  string         `json:"progname,omitempty"`
	Message   string         `json:"message"`
	Backtrace string         `json:"backtrace,omitempty"`
	Env       map[string]any `json:"env,omitempty"`
}

// LatestQuery selects a page of messages.
type LatestQuery struct {
	Limit    int
	Severity string
	Before   string
	After    string
	Search   string
	Regex    bool
}

func (q LatestQuery) values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set("severity", q.Severity)
	set("before", q.Before)
	set("after", q.After)
	set("search", q.Search)
	if q.Regex {
		v.Set("regex", "1")
	}
	return v
}

// Page is one answer of GET /v1/messages.
type Page struct {
	Messages []*message.Message `json:"messages"`
	Total    int64              `json:"total"`
	// Stale is set when the page is empty because its cursor left the window.
	Stale bool `json:"stale"`
}

func (a *API) Health(ctx context.Context) error {
	return a.do(ctx, http.MethodGet, "/v1/healthz", nil, nil, nil)
}

func (a *API) Report(ctx context.Context, req ReportRequest) error {
	return a.do(ctx, http.MethodPost, "/v1/messages", nil, req, nil)
}

func (a *API) Latest(ctx context.Context, q LatestQuery) (Page, error) {
	var p Page
	err := a.do(ctx, http.MethodGet, "/v1/messages", q.values(), nil, &p)
	return p, err
}

func (a *API) Get(ctx context.Context, key string) (*message.Message, error) {
	var m message.Message
	if err := a.do(ctx, http.MethodGet, "/v1/messages/"+url.PathEscape(key), nil, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (a *API) Protect(ctx context.Context, key string) error {
	return a.do(ctx, http.MethodPost, "/v1/messages/"+url.PathEscape(key)+"/protect", nil, nil, nil)
}

func (a *API) Unprotect(ctx context.Context, key string) error {
	return a.do(ctx, http.MethodDelete, "/v1/messages/"+url.PathEscape(key)+"/protect", nil, nil, nil)
}

func (a *API) Count(ctx context.Context) (int64, error) {
	var out struct {
		Count int64 `json:"count"`
	}
	err := a.do(ctx, http.MethodGet, "/v1/count", nil, nil, &out)
	return out.Count, err
}

// Clear removes unprotected messages, or everything when all is set.
func (a *API) Clear(ctx context.Context, all bool) error {
	var q url.Values
	if all {
		q = url.Values{"all": {"1"}}
	}
	return a.do(ctx, http.MethodPost, "/v1/clear", q, nil, nil)
}

func (a *API) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := a.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(b, &e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
