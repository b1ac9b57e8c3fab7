package router

import (
	"errors"
	"strings"
	"testing"

	"github.com/af-corp/prediction-orchestrator/internal/failure"
)

func TestNewResolver_Valid(t *testing.T) {
	reg := NewRegistry(ok("deepseek-r1", "synthetic"), ok("deepseek-r1-together", "together"))
	r, err := NewResolver(map[string]string{"deepseek-r1": "deepseek-r1-together"}, reg, allCredentials)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, found := r.Resolve("deepseek-r1")
	if !found || p.ID() != "deepseek-r1-together" {
		t.Errorf("Resolve = %v, %v", p, found)
	}
	// depth 1: a fallback target never resolves further
	if _, found := r.Resolve("deepseek-r1-together"); found {
		t.Error("fallback target must not resolve")
	}
	if _, found := r.Resolve("unmapped"); found {
		t.Error("unmapped model must not resolve")
	}
}

func TestNewResolver_Violations(t *testing.T) {
	reg := NewRegistry(ok("a", "x"), ok("b", "x"), ok("c", "y"))

	tests := []struct {
		name     string
		mappings map[string]string
		wantMsg  string
	}{
		{"self loop", map[string]string{"a": "a"}, `"a" falls back to itself`},
		{"two cycle", map[string]string{"a": "b", "b": "a"}, `"a" and "b" fall back to each other`},
		{"unknown target", map[string]string{"a": "zzz"}, `unknown model "zzz"`},
		{"unknown source", map[string]string{"ghost": "a"}, `"ghost" is not a configured model`},
		{"chain", map[string]string{"a": "b", "b": "c"}, "chains are not followed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver(tt.mappings, reg, allCredentials)
			var ce *failure.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *failure.ConfigError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
			if !strings.Contains(err.Error(), "a, b, c") {
				t.Errorf("error %q should list valid ids", err.Error())
			}
		})
	}
}

func TestNewResolver_CollectsAllProblems(t *testing.T) {
	reg := NewRegistry(ok("a", "x"), ok("b", "x"))
	_, err := NewResolver(map[string]string{"a": "a", "b": "nope"}, reg, allCredentials)

	var ce *failure.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *failure.ConfigError, got %v", err)
	}
	if len(ce.Problems) != 2 {
		t.Errorf("expected 2 problems, got %v", ce.Problems)
	}
}

func TestNewResolver_TwoCycleReportedOnce(t *testing.T) {
	reg := NewRegistry(ok("a", "x"), ok("b", "x"))
	_, err := NewResolver(map[string]string{"a": "b", "b": "a"}, reg, allCredentials)

	var ce *failure.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *failure.ConfigError, got %v", err)
	}
	if len(ce.Problems) != 1 {
		t.Errorf("expected the pair once, got %v", ce.Problems)
	}
}

func TestResolve_MissingCredential(t *testing.T) {
	reg := NewRegistry(ok("a", "synthetic"), ok("b", "together"))
	check := func(p Provider) bool { return p.Backend() != "together" }

	r, err := NewResolver(map[string]string{"a": "b"}, reg, check)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, found := r.Resolve("a"); found {
		t.Error("expected no fallback when the target backend lacks a credential")
	}
}

func TestResolve_DefaultCredentialCheck(t *testing.T) {
	reg := &Registry{
		providers:   map[string]Provider{"a": ok("a", "synthetic"), "b": ok("b", "together")},
		credentials: map[string]bool{"synthetic": true, "together": false},
	}
	r, err := NewResolver(map[string]string{"a": "b"}, reg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, found := r.Resolve("a"); found {
		t.Error("expected registry credential view to block the fallback")
	}
}

func TestResolve_NilResolver(t *testing.T) {
	var r *Resolver
	if _, found := r.Resolve("a"); found {
		t.Error("nil resolver must not resolve")
	}
}
