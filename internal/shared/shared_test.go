package shared

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseEncryptionKey(t *testing.T) {
	valid := strings.Repeat("ab", 32)

	tt := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "valid key", input: valid},
		{name: "surrounding whitespace", input: "  " + valid + "\n"},
		{name: "empty", input: "", wantErr: ErrMissingEncryptionKey},
		{name: "too short", input: "abcd", wantErr: ErrInvalidEncryptionKey},
		{name: "not hex", input: strings.Repeat("zz", 32), wantErr: ErrInvalidEncryptionKey},
		{name: "all zeros", input: strings.Repeat("0", 64), wantErr: ErrInvalidEncryptionKey},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			key, err := ParseEncryptionKey(tc.input)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ParseEncryptionKey() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEncryptionKey() unexpected error: %v", err)
			}
			if len(key) != 32 {
				t.Errorf("expected 32 byte key, got %d", len(key))
			}
		})
	}
}

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(32)
	if err != nil {
		t.Fatalf("RandomHex() error: %v", err)
	}
	b, _ := RandomHex(32)

	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a == b {
		t.Error("expected two random values to differ")
	}
}

func TestPage(t *testing.T) {
	tt := []struct {
		name       string
		page       int
		limit      int
		wantNumber int
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", page: 0, limit: 0, wantNumber: 1, wantLimit: 20, wantOffset: 0},
		{name: "third page", page: 3, limit: 10, wantNumber: 3, wantLimit: 10, wantOffset: 20},
		{name: "limit capped", page: 1, limit: 500, wantNumber: 1, wantLimit: 100, wantOffset: 0},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPage(tc.page, tc.limit, 20)
			if p.Number != tc.wantNumber || p.Limit != tc.wantLimit || p.Offset() != tc.wantOffset {
				t.Errorf("NewPage() = %+v offset %d, want %d/%d/%d", p, p.Offset(), tc.wantNumber, tc.wantLimit, tc.wantOffset)
			}
		})
	}

	if got := NewPage(1, 10, 20).TotalPages(21); got != 3 {
		t.Errorf("TotalPages(21) = %d, want 3", got)
	}
}

func TestClock(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := FixedClock(fixed).Now(); !got.Equal(fixed) {
		t.Errorf("FixedClock().Now() = %v, want %v", got, fixed)
	}

	var c Clock
	if c.Now().IsZero() {
		t.Error("nil clock should fall back to time.Now")
	}
}

func TestDSN(t *testing.T) {
	file := dsn("/tmp/tunelink.db")
	for _, want := range []string{"_foreign_keys=on", "_busy_timeout=5000", "_txlock=immediate", "_journal_mode=WAL"} {
		if !strings.Contains(file, want) {
			t.Errorf("expected %q in %s", want, file)
		}
	}
	if !strings.HasPrefix(file, "/tmp/tunelink.db?") {
		t.Errorf("unexpected dsn %s", file)
	}

	if mem := dsn(InMemoryDB); strings.Contains(mem, "_journal_mode") || !strings.Contains(mem, "_txlock=immediate") {
		t.Errorf("unexpected in-memory dsn %s", mem)
	}
	if got := dsn("file:x.db?cache=shared"); !strings.Contains(got, "cache=shared&_foreign_keys=on") {
		t.Errorf("expected params appended, got %s", got)
	}
}
