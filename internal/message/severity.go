package message

import (
	"fmt"
	"strconv"
	"strings"
)

// Severity mirrors the conventional logger levels. The numeric values are
// what gets persisted.
type Severity int

const (
	Debug Severity = iota
	Info
	Warn
	Error
	Fatal
	Unknown
)

var severityNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL", "UNKNOWN"}

func (s Severity) String() string {
	if s < Debug || s > Unknown {
		return "UNKNOWN"
	}
	return severityNames[s]
}

// Valid reports whether s is one of the defined severities.
func (s Severity) Valid() bool { return s >= Debug && s <= Unknown }

// ParseSeverity accepts a name (case-insensitive, "warning" allowed) or the
// numeric value.
func ParseSeverity(s string) (Severity, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "WARNING" {
		return Warn, nil
	}
	for i, name := range severityNames {
		if v == name {
			return Severity(i), nil
		}
	}
	if n, err := strconv.Atoi(v); err == nil && Severity(n).Valid() {
		return Severity(n), nil
	}
	return Unknown, fmt.Errorf("message: unknown severity %q", s)
}

// ParseSeverities parses a comma separated list, e.g. "warn,error".
func ParseSeverities(s string) ([]Severity, error) {
	var out []Severity
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		sev, err := ParseSeverity(part)
		if err != nil {
			return nil, err
		}
		out = append(out, sev)
	}
	return out, nil
}
