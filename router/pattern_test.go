package router

import (
	"testing"

	"github.com/relaywamp/wampcore/wamp"
)

func newTestSession() *wamp.Session {
	peer, _ := wamp.LocalPipe()
	return wamp.NewSession(peer, wamp.GlobalID(), wamp.Dict{}, wamp.Dict{})
}

func TestPatternIndexExactMatch(t *testing.T) {
	idx := NewPatternIndex(false)
	s := newTestSession()

	id, ok := idx.Register(s, "com.example.proc", MatchExact)
	if !ok {
		t.Fatal("expected registration to succeed")
	}

	callee, gotID, ok := idx.MatchOne("com.example.proc")
	if !ok || callee != s || gotID != id {
		t.Fatalf("MatchOne = %v, %v, %v", callee, gotID, ok)
	}
	if _, _, ok := idx.MatchOne("com.example.other"); ok {
		t.Error("expected no match for an unregistered URI")
	}
}

func TestPatternIndexSingleHolderRejectsDuplicate(t *testing.T) {
	idx := NewPatternIndex(false)
	s1, s2 := newTestSession(), newTestSession()

	if _, ok := idx.Register(s1, "com.example.proc", MatchExact); !ok {
		t.Fatal("first registration should succeed")
	}
	if _, ok := idx.Register(s2, "com.example.proc", MatchExact); ok {
		t.Error("second registration of the same exact URI should be rejected")
	}
}

func TestPatternIndexDuplicateAllowed(t *testing.T) {
	idx := NewPatternIndex(true)
	s1, s2 := newTestSession(), newTestSession()

	idx.Register(s1, "com.example.topic", MatchExact)
	idx.Register(s2, "com.example.topic", MatchExact)

	matches := idx.Match("com.example.topic")
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
}

func TestPatternIndexPrefix(t *testing.T) {
	idx := NewPatternIndex(true)
	s := newTestSession()
	idx.Register(s, "com.example", MatchPrefix)

	if len(idx.Match("com.example.anything.deep")) != 1 {
		t.Error("expected prefix match to cover a deeper concrete URI")
	}
	if len(idx.Match("com.other.thing")) != 0 {
		t.Error("prefix should not match an unrelated branch")
	}
}

func TestPatternIndexWildcard(t *testing.T) {
	idx := NewPatternIndex(true)
	s := newTestSession()
	idx.Register(s, "com..created", MatchWildcard)

	if len(idx.Match("com.example.created")) != 1 {
		t.Error("expected wildcard component to match any single component")
	}
	if len(idx.Match("com.example.other")) != 0 {
		t.Error("wildcard pattern's trailing literal must still match")
	}
	if len(idx.Match("com.example.sub.created")) != 0 {
		t.Error("wildcard component matches exactly one component, not several")
	}
}

func TestPatternIndexUnregister(t *testing.T) {
	idx := NewPatternIndex(false)
	s := newTestSession()
	id, _ := idx.Register(s, "com.example.proc", MatchExact)

	if !idx.Unregister(s, id) {
		t.Fatal("expected Unregister to report success")
	}
	if idx.Unregister(s, id) {
		t.Error("unregistering an already-removed id should report false")
	}
	if _, _, ok := idx.MatchOne("com.example.proc"); ok {
		t.Error("expected no match after unregister")
	}

	// The trie should be fully pruned back to an empty root.
	if !idx.root.empty() {
		t.Error("expected trie to be pruned to empty after the only entry is removed")
	}
}

func TestPatternIndexUnregisterSession(t *testing.T) {
	idx := NewPatternIndex(true)
	s := newTestSession()
	idx.Register(s, "com.example.a", MatchExact)
	idx.Register(s, "com.example.b", MatchExact)

	idx.UnregisterSession(s)

	if len(idx.Match("com.example.a")) != 0 || len(idx.Match("com.example.b")) != 0 {
		t.Error("expected all of session's entries to be gone")
	}
	if !idx.root.empty() {
		t.Error("expected trie to be pruned after evicting the only session")
	}
}
