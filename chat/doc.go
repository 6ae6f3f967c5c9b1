// Package chat implements the chat orchestrator: scoped grounded-generation
// requests against the session's active store and the decoding of grounding
// metadata into a citation-annotated transcript. The user message is recorded
// before the remote call, so a failed ask leaves the question visible but
// unanswered; only a successful call appends an assistant message.
package chat
