// Package pass holds the server-issued verification pass. A pass lets
// requests skip a fresh human-verification challenge until the server
// rejects it. The store is a single in-memory slot shared by reference
// between the request client (the only writer) and the orchestrator.
package pass
