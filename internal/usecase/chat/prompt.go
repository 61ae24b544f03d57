package chat

// RefusalPhrase is what the model says when the records hold nothing relevant.
const RefusalPhrase = "I don't have that information in the current data."

// ApologyMessage replaces the answer when the language model fails.
const ApologyMessage = "Sorry, I couldn't generate an answer right now. Please try again."

// NoInformationNotice stands in for the evidence block when nothing was retrieved or cached.
const NoInformationNotice = "No relevant information was found in the current data."

// SystemInstruction is sent with every completion request.
const SystemInstruction = `You answer questions about pharmaceutical target and call lists, their versions and their entries, using only the conversation and records given to you.

Rules:
1. Resolve pronouns and references such as he, she, they, that, it, this, why, when and where strictly against the conversation so far. Never invent who or what they refer to.
2. When the question names a specific person, list or other entity, look for an exact match in the records. If it is present, give every field the records hold for it. If it is absent, say plainly that it is not present in the current data instead of guessing.
3. Do not repeat information already given in an earlier answer unless the user asks for it again.
4. Keep answers short, two to four sentences.
5. If the records contain nothing relevant to the question, reply exactly: "` + RefusalPhrase + `"`

// Section headers of the composed context.
const (
	headerHistory        = "Conversation so far:"
	headerEvidence       = "Relevant records:"
	headerCachedEvidence = "Relevant records (from previous query):"
	headerQuestion       = "Current question: "
)
