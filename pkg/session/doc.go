// Package session stores the generated content of each conversation session.
//
// Invariants:
// - A session is stored only after manual test text was generated for it.
// - Every Put on a FileStore rewrites the whole snapshot before returning;
//   a failed rewrite leaves both memory and disk at the previous state.
// - Get never mutates and never touches the disk.
// - A malformed snapshot is reported as ErrMalformedSnapshot on open.
//
// Usage:
//
//	store, _ := session.OpenFileStore("/var/lib/casegen/sessions.json")
//	id := session.NewID()
//	_ = store.Put(ctx, id, session.Session{Manual: text})
//	s, ok, _ := store.Get(ctx, id)
package session
