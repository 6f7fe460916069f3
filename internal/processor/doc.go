// Package processor contains the command logic of lingogate. It builds a
// translation session from the command-line flags (client, pass store,
// verification widget, orchestrator and local state), runs single and batch
// translations with browser verification in between, and drives the
// history, language listing, dev server and desktop window commands.
package processor
