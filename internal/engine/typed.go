package engine

import (
	"encoding/json"

	"github.com/juju/errors"
)

// --- Generics Support ---

// Get retrieves a document and decodes it into T.
func Get[T any](s DocReader, collection, id string) (T, error) {
	var target T
	raw, err := s.Get(collection, id)
	if err != nil {
		return target, err
	}
	if err := json.Unmarshal(raw, &target); err != nil {
		return target, errors.Annotatef(err, "decoding %s %q", collection, id)
	}
	return target, nil
}

// Insert encodes val and stores it under id.
func Insert[T any](s DocWriter, collection, id string, val T) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return errors.Annotatef(err, "encoding %s %q", collection, id)
	}
	return s.Insert(collection, id, raw)
}

// Update decodes the stored document into T, applies mutate and writes the
// result back, all under the store's write lock.
func Update[T any](s DocWriter, collection, id string, mutate func(*T) error) (T, error) {
	var result T
	_, err := s.Update(collection, id, func(doc json.RawMessage) (json.RawMessage, error) {
		var val T
		if err := json.Unmarshal(doc, &val); err != nil {
			return nil, errors.Annotatef(err, "decoding %s %q", collection, id)
		}
		if err := mutate(&val); err != nil {
			return nil, err
		}
		result = val
		return json.Marshal(val)
	})
	return result, err
}

// List decodes every document of a collection, in insertion order.
func List[T any](s DocReader, collection string) ([]T, error) {
	records, err := s.List(collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		var val T
		if err := json.Unmarshal(rec.Doc, &val); err != nil {
			return nil, errors.Annotatef(err, "decoding %s %q", collection, rec.ID)
		}
		out = append(out, val)
	}
	return out, nil
}
