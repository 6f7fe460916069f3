// Package orchestrator decides when a translation may go out, when the user
// has to solve a challenge first and how to recover when the service
// rejects the proof. It drives a challenge widget through the Verifier
// interface and the service through the Translator interface, so the whole
// policy runs without a real browser or network in tests.
//
// One user action is handled at a time. Batch actions translate their
// targets one after another so a pass issued by the first call is sent with
// the following ones.
package orchestrator
