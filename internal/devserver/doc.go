// Package devserver is a local stand-in for the translation service. It
// serves the site key and translate endpoints with the same verification
// rules as production: a widget token is accepted once and exchanged for a
// short-lived pass, a known pass is accepted until it expires, and anything
// else is refused with 403. Translation itself is delegated to an engine
// from the translation package.
package devserver
