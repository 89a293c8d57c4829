package substrate

import (
	"context"
	"errors"
	"testing"
)

func TestNormalizeRange(t *testing.T) {
	tests := []struct {
		name             string
		start, stop, n   int64
		wantFrom, wantTo int64
		wantOK           bool
	}{
		{"last three", -3, -1, 5, 2, 4, true},
		{"clamped head", -10, -1, 4, 0, 3, true},
		{"window before head", -15, -11, 7, 0, 0, false},
		{"partial overlap", -10, -6, 7, 0, 1, true},
		{"stop past tail", 1, 99, 3, 1, 2, true},
		{"empty list", 0, -1, 0, 0, 0, false},
		{"start after stop", 3, 1, 5, 0, 0, false},
		{"start past tail", 5, 9, 5, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, ok := NormalizeRange(tt.start, tt.stop, tt.n)
			if ok != tt.wantOK {
				t.Fatalf("ok=%v want %v", ok, tt.wantOK)
			}
			if ok && (from != tt.wantFrom || to != tt.wantTo) {
				t.Fatalf("got [%d,%d] want [%d,%d]", from, to, tt.wantFrom, tt.wantTo)
			}
		})
	}
}

func TestUnavailableWrapping(t *testing.T) {
	if Unavailable("get", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
	cause := errors.New("connection refused")
	err := Unavailable("lrange", cause)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if again := Unavailable("outer", err); again != err {
		t.Fatalf("double wrap: %v", again)
	}
	if got := Unavailable("commit", context.Canceled); got != context.Canceled {
		t.Fatalf("context errors must pass through, got %v", got)
	}
}
