package client

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rzbill/logwindow/internal/message"
)

// parseEnvFlags turns repeated key=value flags into an env map. Keys under
// "params." land in the nested params map.
func parseEnvFlags(kvs []string) (map[string]any, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	env := map[string]any{}
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --env %q; expected key=value", kv)
		}
		if p, found := strings.CutPrefix(k, "params."); found {
			params, _ := env["params"].(map[string]any)
			if params == nil {
				params = map[string]any{}
				env["params"] = params
			}
			params[p] = v
			continue
		}
		env[k] = v
	}
	return env, nil
}

// writeLine prints one message as a single line:
// time severity xcount [progname] text (key)
func writeLine(w io.Writer, m *message.Message) {
	var b strings.Builder
	b.WriteString(m.Time().UTC().Format(time.RFC3339))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-7s", m.Severity.String())
	if m.Count > 1 {
		fmt.Fprintf(&b, " x%d", m.Count)
	}
	if m.Progname != "" {
		fmt.Fprintf(&b, " [%s]", m.Progname)
	}
	if m.Protected {
		b.WriteString(" *")
	}
	b.WriteByte(' ')
	b.WriteString(firstLine(m.Message))
	fmt.Fprintf(&b, " (%s)\n", m.Key)
	_, _ = io.WriteString(w, b.String())
}

// writeDetail prints every field of m, env keys sorted.
func writeDetail(w io.Writer, m *message.Message) {
	fmt.Fprintf(w, "key:       %s\n", m.Key)
	fmt.Fprintf(w, "time:      %s\n", m.Time().UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(w, "severity:  %s\n", m.Severity)
	fmt.Fprintf(w, "progname:  %s\n", m.Progname)
	fmt.Fprintf(w, "count:     %d\n", m.Count)
	fmt.Fprintf(w, "protected: %t\n", m.Protected)
	fmt.Fprintf(w, "message:   %s\n", m.Message)
	if m.Backtrace != "" {
		fmt.Fprintf(w, "backtrace:\n%s\n", m.Backtrace)
	}
	if len(m.Env) > 0 {
		fmt.Fprintln(w, "env:")
		for _, k := range message.EnvKeys(m.Env) {
			v, _ := json.Marshal(m.Env[k])
			fmt.Fprintf(w, "  %s: %s\n", k, v)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
