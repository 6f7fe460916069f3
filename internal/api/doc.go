// Package api is the HTTP client for the remote translation service. It
// attaches proof of human verification to every translation request (the
// server-issued pass when one is held, the widget token otherwise) and keeps
// the pass store in sync with what the server hands back. Remote calls run
// through a circuit breaker so a failing backend is not hammered.
package api
