// Package conversation implements the chat flow from a feature description to
// manual test cases, exports and generated autotest code.
//
// Invariants:
// - A session is stored only after manual tests were generated successfully.
// - Any action on an unknown session answers with an expiry notice and touches
//   neither the store, the generator nor the exporter.
// - Rich text rejected by the transport is redelivered as plain text once.
// - Transient export files are removed after delivery, also when it fails.
//
// The flow is driven by three inputs: HandleStart for the greeting, HandleText
// for free text and HandleCallback for inline button presses, whose payloads
// are parsed into Action values at the boundary.
package conversation
