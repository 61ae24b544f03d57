package chat

import "github.com/kailas-cloud/listbot/internal/domain/conversation"

// Options holds the pipeline tunables. Zero fields fall back to defaults.
type Options struct {
	TopK             int     // candidates requested from the store
	CallThreshold    float64 // loose pre-filter sent to the store
	KeepThreshold    float64 // similarity must be strictly greater to be kept
	ComposeTopN      int     // documents rendered into the prompt
	FollowUpMaxWords int     // questions shorter than this are fused with the previous turn
	MaxTurns         int     // history kept in the state
	PromptTurns      int     // history rendered into the prompt
}

// DefaultOptions returns the empirically chosen defaults.
func DefaultOptions() Options {
	return Options{
		TopK:             8,
		CallThreshold:    0.35,
		KeepThreshold:    0.4,
		ComposeTopN:      3,
		FollowUpMaxWords: 5,
		MaxTurns:         conversation.DefaultMaxTurns,
		PromptTurns:      2,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TopK <= 0 {
		o.TopK = d.TopK
	}
	if o.CallThreshold <= 0 {
		o.CallThreshold = d.CallThreshold
	}
	if o.KeepThreshold <= 0 {
		o.KeepThreshold = d.KeepThreshold
	}
	if o.ComposeTopN <= 0 {
		o.ComposeTopN = d.ComposeTopN
	}
	if o.FollowUpMaxWords <= 0 {
		o.FollowUpMaxWords = d.FollowUpMaxWords
	}
	if o.MaxTurns <= 0 {
		o.MaxTurns = d.MaxTurns
	}
	if o.PromptTurns <= 0 {
		o.PromptTurns = d.PromptTurns
	}
	return o
}
