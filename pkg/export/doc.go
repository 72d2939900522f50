// Package export renders generated text into files that can be delivered as
// chat attachments, and splits long text for size-limited messages.
//
// Invariants:
// - Every writer returns <dir>/<name>.<ext>; the caller owns deletion.
// - SplitText never yields a chunk longer than the limit (in runes).
// - The Sweeper only removes regular files older than its max age.
package export
