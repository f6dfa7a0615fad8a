package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/kmicac/matchsync/internal/codec"
)

// Dedupe keeps the first occurrence of every key. Items for which key reports
// false have no natural key and are dropped. removed is len(items)-len(unique).
func Dedupe[T any, K comparable](items []T, key func(T) (K, bool)) (unique []T, removed int) {
	seen := make(map[K]struct{}, len(items))
	unique = make([]T, 0, len(items))
	for _, item := range items {
		k, ok := key(item)
		if !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, item)
	}
	return unique, len(items) - len(unique)
}

// DedupeFile rewrites a JSON array of objects in place, keeping the first
// object per value of field and preserving the original order.
func DedupeFile(path, field string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "read %s", path)
	}

	var items []map[string]json.RawMessage
	if err := codec.Unmarshal(data, &items); err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "decode %s: expected a list of objects", path), ErrCorruptState)
	}

	unique, removed := Dedupe(items, func(item map[string]json.RawMessage) (string, bool) {
		return fieldKey(item[field])
	})
	if removed == 0 {
		return 0, nil
	}
	if err := WriteJSON(path, unique); err != nil {
		return 0, err
	}
	return removed, nil
}

// fieldKey turns a raw JSON scalar into a map key tagged with its JSON kind,
// so 1 and "1" stay distinct. null, "" and missing values have no key.
func fieldKey(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var v any
	if err := codec.Unmarshal(raw, &v); err != nil || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return "string:" + t, t != ""
	case json.Number:
		return "number:" + t.String(), true
	case bool:
		return "bool:" + strconv.FormatBool(t), true
	default:
		return fmt.Sprintf("%T:%v", t, t), true
	}
}
