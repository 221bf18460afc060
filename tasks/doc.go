// Package tasks implements the task and comment workflow on top of the
// authorization guard.
//
// Every Service method takes the caller's identity explicitly. The guard is
// consulted on the loaded task before any write. Denials are returned
// as errors wrapping taskAuth.ErrDenied; a denied call never reports the
// unchanged task as a success. Writes use the task's Version for optimistic
// concurrency and a lost race surfaces as taskAuth.ErrConflictingUpdate.
package tasks
