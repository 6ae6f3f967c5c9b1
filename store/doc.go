// Package store implements the store manager: create, list and delete remote
// document stores while keeping the session's store cache and active
// selection consistent. The remote service is the sole source of truth; the
// cache is replaced wholesale on every refresh and stale references are
// recovered by dropping the dead entry rather than failing the session.
package store
