package canonical_test

import (
	"testing"

	"github.com/subluminal/hookmediator/pkg/canonical"
)

func TestKeyOrderEquivalence(t *testing.T) {
	objA := map[string]any{"b": 1, "a": 2}
	objB := map[string]any{"a": 2, "b": 1}

	hashA, err := canonical.Hash(objA)
	if err != nil {
		t.Fatalf("Hash(objA) returned error: %v", err)
	}
	hashB, err := canonical.Hash(objB)
	if err != nil {
		t.Fatalf("Hash(objB) returned error: %v", err)
	}

	if hashA != hashB {
		t.Errorf("different key order produced different hashes: %s vs %s", hashA, hashB)
	}
}

func TestNestedKeyOrderEquivalence(t *testing.T) {
	objA := map[string]any{
		"outer": map[string]any{"z": 1, "a": 2},
		"name":  "test",
	}
	objB := map[string]any{
		"name":  "test",
		"outer": map[string]any{"a": 2, "z": 1},
	}

	hashA, _ := canonical.Hash(objA)
	hashB, _ := canonical.Hash(objB)

	if hashA != hashB {
		t.Errorf("nested key order should not affect hash")
	}
}

func TestArrayOrderPreserved(t *testing.T) {
	objA := map[string]any{"items": []any{1, 2, 3}}
	objB := map[string]any{"items": []any{3, 2, 1}}

	hashA, _ := canonical.Hash(objA)
	hashB, _ := canonical.Hash(objB)

	if hashA == hashB {
		t.Errorf("arrays with different order must not collide")
	}
}

func TestGoldenValue(t *testing.T) {
	input := map[string]any{"b": 2, "a": 1}
	expected := "43258cff783fe7036d8a43033f830adfc60ec037382473548ac742b888292777"

	got, err := canonical.Hash(input)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if got != expected {
		t.Errorf("golden value mismatch: expected %s, got %s", expected, got)
	}
}

func TestStability(t *testing.T) {
	input := map[string]any{"name": "test", "value": 42}

	first, err := canonical.Hash(input)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	for i := 0; i < 25; i++ {
		got, err := canonical.Hash(input)
		if err != nil {
			t.Fatalf("Hash returned error on iteration %d: %v", i, err)
		}
		if got != first {
			t.Errorf("non-deterministic output on iteration %d", i)
		}
	}
}

func TestUTF8Encoding(t *testing.T) {
	objA := map[string]any{"name": "日本語"}
	objB := map[string]any{"name": "日本語"}
	objC := map[string]any{"emoji": "🚀🔥"}

	hashA, _ := canonical.Hash(objA)
	hashB, _ := canonical.Hash(objB)
	hashC, _ := canonical.Hash(objC)

	if hashA != hashB {
		t.Errorf("same unicode string produced different hashes")
	}
	if hashA == hashC {
		t.Errorf("different unicode strings produced same hash")
	}
}

func TestNoInsignificantWhitespace(t *testing.T) {
	input := map[string]any{"a": 1, "b": 2}

	canonicalBytes, err := canonical.Canonicalize(input)
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}

	got := string(canonicalBytes)
	expected := `{"a":1,"b":2}`
	if got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}
}

func TestStringEscaping(t *testing.T) {
	cases := []struct {
		name  string
		input map[string]any
	}{
		{"quotes", map[string]any{"text": `He said "hello"`}},
		{"newline", map[string]any{"text": "line1\nline2"}},
		{"backslash", map[string]any{"path": `C:\Users\test`}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hash, err := canonical.Hash(tc.input)
			if err != nil {
				t.Fatalf("Hash failed on %s: %v", tc.name, err)
			}
			if len(hash) != 64 {
				t.Errorf("expected 64-char hex hash, got %d chars", len(hash))
			}
		})
	}
}
