package message

import (
	"net/http"
	"os"
	"sort"
	"strings"
)

// AllowedEnv lists the request attributes copied into a message's env.
var AllowedEnv = []string{
	"HTTP_HOST",
	"REQUEST_URI",
	"REQUEST_METHOD",
	"HTTP_USER_AGENT",
	"HTTP_ACCEPT",
	"HTTP_REFERER",
	"HTTP_X_FORWARDED_FOR",
	"HTTP_X_REAL_IP",
	"hostname",
	"process_id",
}

const (
	maxParamLen = 100
	redacted    = "[redacted]"
)

var hostname = func() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "<unknown>"
	}
	return h
}()

// EnvFromRequest extracts the allow-listed attributes and scrubbed params of r.
// The body is not consumed; form values count only if already parsed.
func EnvFromRequest(r *http.Request) map[string]any {
	env := map[string]any{}
	put := func(k, v string) {
		if v != "" {
			env[k] = v
		}
	}
	put("HTTP_HOST", r.Host)
	if r.RequestURI != "" {
		put("REQUEST_URI", r.RequestURI)
	} else if r.URL != nil {
		put("REQUEST_URI", r.URL.RequestURI())
	}
	put("REQUEST_METHOD", r.Method)
	put("HTTP_USER_AGENT", r.Header.Get("User-Agent"))
	put("HTTP_ACCEPT", r.Header.Get("Accept"))
	put("HTTP_REFERER", r.Header.Get("Referer"))
	put("HTTP_X_FORWARDED_FOR", r.Header.Get("X-Forwarded-For"))
	put("HTTP_X_REAL_IP", r.Header.Get("X-Real-Ip"))

	values := r.Form
	if values == nil && r.URL != nil {
		values = r.URL.Query()
	}
	if len(values) > 0 {
		params := make(map[string]any, len(values))
		for k, vs := range values {
			if len(vs) == 0 {
				continue
			}
			params[k] = scrubParam(k, vs[0])
		}
		if len(params) > 0 {
			env["params"] = params
		}
	}
	return WithProcessEnv(env)
}

// WithProcessEnv fills hostname and process_id when absent. A nil env yields
// a new map.
func WithProcessEnv(env map[string]any) map[string]any {
	if env == nil {
		env = map[string]any{}
	}
	if _, ok := env["hostname"]; !ok {
		env["hostname"] = hostname
	}
	if _, ok := env["process_id"]; !ok {
		env["process_id"] = os.Getpid()
	}
	return env
}

// ScrubEnv keeps only allow-listed keys and params from a caller-supplied env.
func ScrubEnv(env map[string]any) map[string]any {
	if env == nil {
		return nil
	}
	out := make(map[string]any, len(env))
	for _, k := range AllowedEnv {
		if v, ok := env[k]; ok && v != nil {
			out[k] = v
		}
	}
	if raw, ok := env["params"].(map[string]any); ok {
		params := make(map[string]any, len(raw))
		for k, v := range raw {
			if s, ok := v.(string); ok {
				params[k] = scrubParam(k, s)
				continue
			}
			if strings.Contains(k, "password") {
				params[k] = redacted
				continue
			}
			params[k] = v
		}
		if len(params) > 0 {
			out["params"] = params
		}
	}
	return out
}

func scrubParam(key, value string) string {
	if strings.Contains(key, "password") {
		return redacted
	}
	if r := []rune(value); len(r) > maxParamLen {
		return string(r[:maxParamLen])
	}
	return value
}

// EnvKeys returns the env keys sorted, for stable rendering.
func EnvKeys(env map[string]any) []string {
	out := make([]string, 0, len(env))
	for k := range env {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
