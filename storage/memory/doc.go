// Package memory provides an in-memory implementation of every storage
// interface, suitable for tests and single-process deployments. All state
// is lost on restart. Entities are copied on write and on read so callers
// can never mutate stored state through a shared pointer.
package memory
