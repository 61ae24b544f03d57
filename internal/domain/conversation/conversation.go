package conversation

import "strings"

// DefaultMaxTurns is how many turns a State keeps at rest.
const DefaultMaxTurns = 3

// Turn is one completed question/answer exchange.
type Turn struct {
	User      string
	Assistant string
}

// State is the caller-held conversation memory (immutable value object).
// History is a bounded FIFO window; the oldest turn is evicted first.
type State struct {
	history              []Turn
	lastRetrievedContent string
}

// NewState builds a State from caller-provided history, keeping only the newest maxTurns turns.
// maxTurns <= 0 falls back to DefaultMaxTurns.
func NewState(history []Turn, lastRetrievedContent string, maxTurns int) State {
	return State{
		history:              trim(history, maxTurns),
		lastRetrievedContent: lastRetrievedContent,
	}
}

// History returns a copy of the turns, oldest first.
func (s State) History() []Turn {
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// LastRetrievedContent returns the evidence rendering cached from the last successful retrieval.
func (s State) LastRetrievedContent() string { return s.lastRetrievedContent }

// LastTurn returns the most recent turn, if any.
func (s State) LastTurn() (Turn, bool) {
	if len(s.history) == 0 {
		return Turn{}, false
	}
	return s.history[len(s.history)-1], true
}

// Len returns the number of turns held.
func (s State) Len() int { return len(s.history) }

// Append returns a new State with turn added and history trimmed to maxTurns.
// The receiver is left untouched.
func (s State) Append(turn Turn, lastRetrievedContent string, maxTurns int) State {
	next := make([]Turn, 0, len(s.history)+1)
	next = append(next, s.history...)
	next = append(next, turn)
	return State{
		history:              trim(next, maxTurns),
		lastRetrievedContent: lastRetrievedContent,
	}
}

// Recent returns up to n newest turns, oldest first.
func (s State) Recent(n int) []Turn {
	if n <= 0 {
		return nil
	}
	return trim(s.History(), n)
}

func trim(history []Turn, maxTurns int) []Turn {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}
	out := make([]Turn, len(history))
	copy(out, history)
	return out
}

// Query is one incoming question with the caller's conversation state.
type Query struct {
	question string
	state    State
}

// NewQuery creates a Query. The question is kept verbatim.
func NewQuery(question string, state State) Query {
	return Query{question: question, state: state}
}

// Question returns the verbatim question.
func (q Query) Question() string { return q.question }

// State returns the conversation state the question arrived with.
func (q Query) State() State { return q.state }

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
