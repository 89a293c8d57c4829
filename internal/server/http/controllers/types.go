package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rzbill/logwindow/internal/logstore"
	"github.com/rzbill/logwindow/internal/message"
)

// reportReq is the body of POST /v1/messages.
type reportReq struct {
	Severity  severityField  `json:"severity"`
	Progname  string         `json:"progname"`
	Message   string         `json:"message"`
	Backtrace string         `json:"backtrace"`
	Env       map[string]any `json:"env"`
}

func (r reportReq) params() logstore.ReportParams {
	return logstore.ReportParams{
		Severity:  message.Severity(r.Severity),
		Progname:  r.Progname,
		Text:      r.Message,
		Backtrace: r.Backtrace,
		Env:       message.WithProcessEnv(message.ScrubEnv(r.Env)),
	}
}

// severityField accepts either a severity name or its number. Missing or
// null means Unknown.
type severityField message.Severity

func (s *severityField) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = severityField(message.Unknown)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		if !message.Severity(n).Valid() {
			return fmt.Errorf("severity %d out of range", n)
		}
		*s = severityField(n)
		return nil
	}
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("severity must be a name or number")
	}
	sev, err := message.ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = severityField(sev)
	return nil
}

// latestResp is the body of GET /v1/messages.
type latestResp struct {
	Messages []*message.Message `json:"messages"`
	Total    int64              `json:"total"`
	Stale    bool               `json:"stale,omitempty"`
}

type protectResp struct {
	Key       string `json:"key"`
	Protected bool   `json:"protected"`
}

type countResp struct {
	Count int64 `json:"count"`
}
