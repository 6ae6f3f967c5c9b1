package chat

import (
	"context"
	"strings"

	"github.com/rzg777/filesearch/core"
	"github.com/rzg777/filesearch/logging"
)

// Options configures an Orchestrator.
type Options struct {
	Logger logging.Logger
}

// AskOptions tune a single ask call.
type AskOptions struct {
	// Model overrides the session's active model for this call only.
	Model string
	// MetadataFilter scopes retrieval to files matching the expression
	// (e.g. "category = 'finance'"). Passed through to the service unparsed.
	MetadataFilter string
}

// WithModel overrides the model for one ask.
func WithModel(model string) func(o *AskOptions) {
	return func(o *AskOptions) { o.Model = model }
}

// WithMetadataFilter scopes one ask to files matching the filter expression.
func WithMetadataFilter(filter string) func(o *AskOptions) {
	return func(o *AskOptions) { o.MetadataFilter = filter }
}

// Orchestrator builds grounded chat requests and maintains the transcript.
type Orchestrator struct {
	svc    core.RemoteService
	logger logging.Logger
}

// NewOrchestrator creates a chat orchestrator over the given remote backend.
func NewOrchestrator(svc core.RemoteService, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Orchestrator{svc: svc, logger: opts.Logger}
}

// Ask sends a question scoped to the session's active store and appends the
// exchange to the transcript. The user message is appended before the remote
// call and stays in place even when the call fails; an assistant message is
// appended only on success, with citations in the exact order the service
// returned its grounding chunks.
//
// Concurrent asks within one session are disallowed by contract and rejected
// by an in-flight guard. If ctx is cancelled while the call is in flight, a
// late response is discarded rather than applied.
func (o *Orchestrator) Ask(ctx context.Context, sess *core.Session, question string, optFns ...func(o *AskOptions)) (core.ChatMessage, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return core.ChatMessage{}, &core.ConfigurationError{Op: "ask", Reason: "question must not be empty"}
	}
	st, ok := sess.Selected()
	if !ok {
		return core.ChatMessage{}, &core.ConfigurationError{Op: "ask", Reason: "no store selected"}
	}

	opts := AskOptions{Model: sess.Model()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Model == "" {
		return core.ChatMessage{}, &core.ConfigurationError{Op: "ask", Reason: "no model configured"}
	}

	if !sess.BeginAsk() {
		return core.ChatMessage{}, &core.ConfigurationError{Op: "ask", Reason: "another ask is already in flight"}
	}
	defer sess.EndAsk()

	sess.AppendMessage(core.NewUserMessage(q))

	res, err := o.svc.GenerateGrounded(ctx, core.GenerateRequest{
		Model:          opts.Model,
		Prompt:         q,
		StoreID:        st.ID,
		MetadataFilter: opts.MetadataFilter,
	})
	if err != nil {
		return core.ChatMessage{}, err
	}
	if ctx.Err() != nil {
		// Abandoned by the caller; do not apply the late response.
		return core.ChatMessage{}, ctx.Err()
	}

	citations := make([]core.Citation, 0, len(res.Chunks))
	for _, ch := range res.Chunks {
		citations = append(citations, core.Citation{Title: ch.Title, Locator: ch.Locator, Snippet: ch.Snippet})
	}
	msg := core.NewAssistantMessage(res.Text, citations)
	sess.AppendMessage(msg)
	o.logger.Debug("ask answered", "store_id", st.ID, "model", opts.Model, "citations", len(citations))
	return msg, nil
}

// Reset clears the session transcript.
func (o *Orchestrator) Reset(sess *core.Session) {
	sess.ResetTranscript()
}
