package id

import (
	"bytes"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestTraceIDFormat(t *testing.T) {
	gen := NewGenerator()

	id := gen.TraceID()

	if len(id) != TraceIDLength {
		t.Errorf("trace ID should be %d characters, got %d", TraceIDLength, len(id))
	}
	if !IsValidTraceID(string(id)) {
		t.Errorf("trace ID should be valid hex: %s", id)
	}
}

func TestSpanIDFormat(t *testing.T) {
	gen := NewGenerator()

	id := gen.SpanID()

	if len(id) != SpanIDLength {
		t.Errorf("span ID should be %d characters, got %d", SpanIDLength, len(id))
	}
	if !IsValidSpanID(string(id)) {
		t.Errorf("span ID should be valid hex: %s", id)
	}
}

func TestUniqueness(t *testing.T) {
	gen := NewGenerator()

	if gen.TraceID() == gen.TraceID() {
		t.Error("generated trace IDs should be unique")
	}
	if gen.SpanID() == gen.SpanID() {
		t.Error("generated span IDs should be unique")
	}
}

func TestDeterministicEntropy(t *testing.T) {
	gen := NewGeneratorWithEntropy(bytes.NewReader(bytes.Repeat([]byte{0xab}, 64)))

	if got := gen.SpanID(); got != "abababababababab" {
		t.Errorf("span ID should come straight from entropy, got %s", got)
	}
}

func TestIsValidTraceID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"4bf92f3577b34da6a3ce929d0e0e4736", true},
		{"6a2c4affac4d0296", true},
		{"00000000000000000000000000000000", false},
		{"abc", false},
		{"4BF92F3577B34DA6A3CE929D0E0E4736", false},
		{"zzf92f3577b34da6a3ce929d0e0e4736", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidTraceID(tt.id); got != tt.valid {
			t.Errorf("IsValidTraceID(%q) = %v, want %v", tt.id, got, tt.valid)
		}
	}
}

func TestIsValidSpanID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"00f067aa0ba902b7", true},
		{"0000000000000000", false},
		{"123", false},
		{"4bf92f3577b34da6a3ce929d0e0e4736", false},
	}

	for _, tt := range tests {
		if got := IsValidSpanID(tt.id); got != tt.valid {
			t.Errorf("IsValidSpanID(%q) = %v, want %v", tt.id, got, tt.valid)
		}
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewTraceID()
	after := time.Now().Add(time.Second)

	ts, err := Timestamp(id)
	if err != nil {
		t.Fatalf("Timestamp failed: %v", err)
	}
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp %v outside [%v, %v]", ts, before, after)
	}

	if _, err := Timestamp("not-hex"); err == nil {
		t.Error("Timestamp should fail for invalid input")
	}
}

func TestTraceIDsSortByTime(t *testing.T) {
	gen := NewGenerator()

	first := gen.TraceID()
	time.Sleep(2 * time.Millisecond)
	second := gen.TraceID()

	ids := []string{string(second), string(first)}
	sort.Strings(ids)
	if ids[0] != string(first) {
		t.Errorf("trace IDs should sort by creation time: %v", ids)
	}
}

func TestConcurrentGeneration(t *testing.T) {
	const goroutines = 20
	const perGoroutine = 100

	var mu sync.Mutex
	seen := make(map[SpanID]bool, goroutines*perGoroutine)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := NewSpanID()
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate span ID: %s", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}

func TestDefaultGenerator(t *testing.T) {
	if Default() != Default() {
		t.Error("Default should return the same generator")
	}
}

func BenchmarkTraceID(b *testing.B) {
	gen := NewGenerator()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = gen.TraceID()
	}
}

func BenchmarkSpanID(b *testing.B) {
	gen := NewGenerator()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = gen.SpanID()
	}
}
