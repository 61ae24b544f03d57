package chat

import "github.com/kailas-cloud/listbot/internal/domain/conversation"

// RewriteQuery picks the text to embed. A short question following at least
// one turn is prefixed with the previous user message so pronouns like
// "his" or "why" carry the anchors of the turn they refer to.
func RewriteQuery(question string, state conversation.State, maxWords int) string {
	last, ok := state.LastTurn()
	if !ok || conversation.WordCount(question) >= maxWords {
		return question
	}
	return last.User + " " + question
}
