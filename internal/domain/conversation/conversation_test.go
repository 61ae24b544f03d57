package conversation

import (
	"fmt"
	"testing"
)

func TestNewState_TrimsToNewest(t *testing.T) {
	history := []Turn{
		{User: "q1", Assistant: "a1"},
		{User: "q2", Assistant: "a2"},
		{User: "q3", Assistant: "a3"},
		{User: "q4", Assistant: "a4"},
	}
	s := NewState(history, "cache", 3)

	if s.Len() != 3 {
		t.Fatalf("expected 3 turns, got %d", s.Len())
	}
	if got := s.History()[0].User; got != "q2" {
		t.Errorf("expected oldest kept turn q2, got %q", got)
	}
	if s.LastRetrievedContent() != "cache" {
		t.Errorf("expected cache preserved, got %q", s.LastRetrievedContent())
	}
}

func TestNewState_DefaultMaxTurns(t *testing.T) {
	history := make([]Turn, 10)
	s := NewState(history, "", 0)
	if s.Len() != DefaultMaxTurns {
		t.Errorf("expected %d turns, got %d", DefaultMaxTurns, s.Len())
	}
}

func TestState_AppendNeverExceedsMax(t *testing.T) {
	s := NewState(nil, "", 3)
	for i := range 20 {
		s = s.Append(Turn{User: fmt.Sprintf("q%d", i), Assistant: "a"}, "", 3)
		if s.Len() > 3 {
			t.Fatalf("history exceeded max after %d appends: %d", i+1, s.Len())
		}
	}

	h := s.History()
	want := []string{"q17", "q18", "q19"}
	for i, w := range want {
		if h[i].User != w {
			t.Errorf("turn %d: expected %q, got %q", i, w, h[i].User)
		}
	}
}

func TestState_AppendDoesNotMutateReceiver(t *testing.T) {
	s := NewState([]Turn{{User: "q1", Assistant: "a1"}}, "old", 3)
	next := s.Append(Turn{User: "q2", Assistant: "a2"}, "new", 3)

	if s.Len() != 1 || s.LastRetrievedContent() != "old" {
		t.Errorf("receiver mutated: len=%d cache=%q", s.Len(), s.LastRetrievedContent())
	}
	if next.Len() != 2 || next.LastRetrievedContent() != "new" {
		t.Errorf("unexpected next state: len=%d cache=%q", next.Len(), next.LastRetrievedContent())
	}
}

func TestState_HistoryIsCopy(t *testing.T) {
	s := NewState([]Turn{{User: "q1", Assistant: "a1"}}, "", 3)
	h := s.History()
	h[0].User = "changed"

	if s.History()[0].User != "q1" {
		t.Error("History() must return a copy")
	}
}

func TestState_Recent(t *testing.T) {
	s := NewState([]Turn{
		{User: "q1"}, {User: "q2"}, {User: "q3"},
	}, "", 3)

	got := s.Recent(2)
	if len(got) != 2 || got[0].User != "q2" || got[1].User != "q3" {
		t.Errorf("unexpected recent turns: %+v", got)
	}
	if s.Recent(0) != nil {
		t.Error("expected nil for n=0")
	}
	if len(s.Recent(10)) != 3 {
		t.Error("expected all turns when n exceeds history")
	}
}

func TestState_LastTurn(t *testing.T) {
	if _, ok := NewState(nil, "", 3).LastTurn(); ok {
		t.Error("expected no last turn for empty state")
	}

	s := NewState([]Turn{{User: "q1"}, {User: "q2"}}, "", 3)
	last, ok := s.LastTurn()
	if !ok || last.User != "q2" {
		t.Errorf("expected q2, got %+v (ok=%v)", last, ok)
	}
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"why?", 1},
		{"  his   email?  ", 2},
		{"What is Dr. Rohan's email?", 5},
		{"line\nbreak\ttab", 3},
	}
	for _, tt := range tests {
		if got := WordCount(tt.in); got != tt.want {
			t.Errorf("WordCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
