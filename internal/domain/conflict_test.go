package domain

import (
	"testing"
	"time"
)

func TestResolveLastWriteWinsIsPure(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	server := base.Add(time.Minute)

	first := ResolveLastWriteWins(base, server)
	second := ResolveLastWriteWins(base, server)

	if first != second {
		t.Fatalf("resolver is not deterministic: %v then %v", first, second)
	}
	if first {
		t.Fatalf("stale base must not proceed")
	}

	if !ResolveLastWriteWins(server, base) {
		t.Fatalf("newer base must proceed")
	}
	if !ResolveLastWriteWins(base, base) {
		t.Fatalf("equal timestamps must proceed")
	}
}

func TestMergeFieldsKeepsServerOnlyFields(t *testing.T) {
	server := map[string]any{
		"title":    "Server Title",
		"body":     "server body",
		"category": "announcements",
	}
	local := map[string]any{
		"title": "Local Title",
	}

	merged := MergeFields(server, local)

	if merged["title"] != "Local Title" {
		t.Fatalf("local field must win, got %v", merged["title"])
	}
	if merged["body"] != "server body" {
		t.Fatalf("server-only field dropped: %v", merged["body"])
	}
	if merged["category"] != "announcements" {
		t.Fatalf("server-only field dropped: %v", merged["category"])
	}
}

func TestMergeFieldsExcludesImmutableEnvelope(t *testing.T) {
	server := map[string]any{
		"createdAt": "2026-01-01T00:00:00Z",
		"createdBy": "actor-a",
		"title":     "Server",
	}
	local := map[string]any{
		"createdAt": "2026-02-02T00:00:00Z",
		"createdBy": "actor-b",
		"title":     "Local",
	}

	merged := MergeFields(server, local)

	if merged["createdAt"] != "2026-01-01T00:00:00Z" {
		t.Fatalf("createdAt must be immutable, got %v", merged["createdAt"])
	}
	if merged["createdBy"] != "actor-a" {
		t.Fatalf("createdBy must be immutable, got %v", merged["createdBy"])
	}
	if merged["title"] != "Local" {
		t.Fatalf("mutable field must follow local change")
	}
}

func TestMergeFieldsReplacesArraysWhole(t *testing.T) {
	server := map[string]any{"tags": []any{"a", "b"}}
	local := map[string]any{"tags": []any{"c"}}

	merged := MergeFields(server, local)

	tags, ok := merged["tags"].([]any)
	if !ok || len(tags) != 1 || tags[0] != "c" {
		t.Fatalf("array fields are replaced whole, got %v", merged["tags"])
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy(""); err != nil || s != StrategyLastWriteWins {
		t.Fatalf("empty strategy must default to last-write-wins, got %v %v", s, err)
	}
	if _, err := ParseStrategy("newest"); err == nil {
		t.Fatalf("unknown strategy must be rejected")
	}
}
