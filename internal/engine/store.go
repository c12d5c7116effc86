// Package engine implements the document store behind Pawgram.
package engine

import (
	"encoding/json"
)

// Collections used by the application.
const (
	Accounts = "accounts"
	Posts    = "posts"
)

// Record is a stored document together with its insertion sequence.
// Seq grows monotonically across the whole store and is preserved by updates.
type Record struct {
	ID  string          `json:"-"`
	Seq uint64          `json:"seq"`
	Doc json.RawMessage `json:"doc"`
}

// MutateFunc receives a private copy of a document and returns its
// replacement. Returning an error aborts the update and leaves the stored
// document untouched.
type MutateFunc func(doc json.RawMessage) (json.RawMessage, error)

// --- Functional Interfaces ---

// DocReader defines read access to documents.
type DocReader interface {
	Get(collection, id string) (json.RawMessage, error)
	// List returns every record of a collection in insertion order.
	List(collection string) ([]Record, error)
	Count(collection string) int
}

// DocWriter defines write access to documents. Every call is atomic with
// respect to the document it touches.
type DocWriter interface {
	// Insert stores doc under id and fails with AlreadyExists if id is taken.
	Insert(collection, id string, doc json.RawMessage) error
	// Update runs fn against the current document and stores the result
	// while holding the write lock.
	Update(collection, id string, fn MutateFunc) (json.RawMessage, error)
	Delete(collection, id string) error
}

// DocStore is the full document store contract.
type DocStore interface {
	DocReader
	DocWriter
}
