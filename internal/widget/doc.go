// Package widget adapts a third-party human-verification widget (a
// Turnstile-style challenge) to the translation client. The Adapter owns the
// current verification token together with the ready and loading flags.
// The widget runtime itself is reached through the Global interface and is
// loaded at most once per process by a ScriptLoader.
package widget
