package id

import (
	"sort"
	"strings"
	"testing"
	"time"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateSortable(t *testing.T) {
	gen := NewGenerator()

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = gen.GenerateWithPrefix(RequestPrefix)
	}

	if !sort.StringsAreSorted(ids) {
		t.Error("IDs from one generator should sort in creation order")
	}
}

func TestTypedIDs(t *testing.T) {
	tests := []struct {
		id     string
		prefix string
	}{
		{NewRequestID().String(), "req_"},
		{NewTraceID().String(), "trc_"},
		{NewSpanID().String(), "spn_"},
	}

	for _, tt := range tests {
		if !strings.HasPrefix(tt.id, tt.prefix) {
			t.Errorf("ID should start with %q, got: %s", tt.prefix, tt.id)
		}
		if len(tt.id) != len(tt.prefix)+26 {
			t.Errorf("ID should carry a 26 character ULID, got: %s", tt.id)
		}
	}
}

func TestTimestamp(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	gen := NewGeneratorWithEntropy(strings.NewReader(strings.Repeat("x", 64)), func() time.Time { return at })

	got, err := Timestamp(gen.GenerateWithPrefix(RequestPrefix))
	if err != nil {
		t.Fatalf("Timestamp failed: %v", err)
	}
	if !got.Equal(at) {
		t.Errorf("expected %v, got %v", at, got)
	}

	if _, err := Timestamp("req_not-a-ulid"); err == nil {
		t.Error("expected an error for a malformed id")
	}
}
