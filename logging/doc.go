// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer StudioLogger with contextual
// helpers (session, store, component) and a redaction helper so bearer
// credentials never reach a log line.
package logging
