// Package remote houses core.RemoteService backends. Each provider lives in
// its own sub-package (gemini, openai) so the wiring layer decides which one
// to instantiate; the root package ships a deterministic MockService for
// tests and examples.
package remote
