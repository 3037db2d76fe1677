// Package session coordinates concurrent access to conversation state.
//
// A Manager wraps a ports.SessionStore with per-session mutual exclusion so
// that two requests for the same session cannot interleave their
// read-modify-write cycles. Locks are reference counted and evaporate as
// soon as the last holder releases them. An optional ports.DistributedLocker
// extends the same guarantee across replicas.
package session
