package services

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Decode converts a stored document into T through the json tags the
// models share with their firestore tags. The document id is set as "id".
func Decode[T any](doc Document) (T, error) {
	var out T
	data := make(map[string]any, len(doc.Data)+1)
	for k, v := range doc.Data {
		data[k] = v
	}
	data["id"] = doc.ID

	raw, err := json.Marshal(data)
	if err != nil {
		return out, fmt.Errorf("encoding document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding document %s: %w", doc.ID, err)
	}
	return out, nil
}

// DecodeAll decodes every document it can; failures are joined into the
// returned error and the offending documents are left out.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	var errs []error
	for _, d := range docs {
		v, err := Decode[T](d)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, v)
	}
	return out, errors.Join(errs...)
}

// normalize turns a model or map into the plain JSON value tree the
// in-memory store keeps.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeDoc(v any) (map[string]any, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, err
	}
	m, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document must encode to an object, got %T", n)
	}
	delete(m, "id")
	return m, nil
}
