// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing sessions in a known state (model, cached
// stores, selection, queued tasks, transcript). These helpers are
// intentionally minimal and not intended for production usage.
package testutil
