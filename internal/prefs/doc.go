// Package prefs persists language selections and translation history in a
// small SQLite database under the state directory. Reading preferences never
// fails loudly: storage problems are logged and defaults are used instead.
package prefs
