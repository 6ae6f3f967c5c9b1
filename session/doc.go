// Package session houses concrete implementations of core.SessionStore. The
// interface itself (and the Session struct) live in the core package to
// centralize domain contracts; keeping only implementations here prevents
// higher level packages from depending on concrete storage.
//
// Only an in-memory store exists: sessions are process-local by design and
// nothing about them persists across restarts.
package session
