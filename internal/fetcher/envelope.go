package fetcher

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/kmicac/matchsync/internal/codec"
)

// DefaultEnvelope lists the wrapper keys providers use around result lists.
var DefaultEnvelope = []string{"response", "data", "items"}

// Unwrap extracts the record list from a provider payload. It accepts a bare
// array, an object wrapping the list under one of keys (checked in order), or
// a single object, which becomes a one-element list.
func Unwrap(body []byte, keys []string) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.Mark(errors.New("empty body"), ErrMalformedPayload)
	}

	switch body[0] {
	case '[':
		var list []json.RawMessage
		if err := codec.Unmarshal(body, &list); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode list"), ErrMalformedPayload)
		}
		return list, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := codec.Unmarshal(body, &obj); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode object"), ErrMalformedPayload)
		}
		for _, k := range keys {
			inner, ok := obj[k]
			if !ok {
				continue
			}
			if isNull(inner) {
				return []json.RawMessage{}, nil
			}
			return Unwrap(inner, nil)
		}
		return []json.RawMessage{json.RawMessage(body)}, nil
	case 'n':
		if isNull(body) {
			return []json.RawMessage{}, nil
		}
	}
	return nil, errors.Mark(errors.Newf("unexpected payload starting with %q", body[0]), ErrMalformedPayload)
}

type notice int

const (
	noticeNone notice = iota
	noticeThrottle
	noticeError
)

// throttleKeys are the "errors" entries providers use for quota notices,
// compared case-insensitively.
var throttleKeys = []string{"ratelimit", "requests"}

// bodyNotice classifies a 200 body. A top-level "rateLimit" key or an
// "errors" object holding a throttleKeys entry is a throttling notice; any
// other non-empty "errors" value is a provider error.
func bodyNotice(body []byte) notice {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return noticeNone
	}
	var obj map[string]json.RawMessage
	if err := codec.Unmarshal(body, &obj); err != nil {
		return noticeNone
	}
	if _, ok := obj["rateLimit"]; ok {
		return noticeThrottle
	}
	raw := obj["errors"]
	if isEmpty(raw) {
		return noticeNone
	}

	var entries map[string]json.RawMessage
	if err := codec.Unmarshal(raw, &entries); err == nil {
		for k := range entries {
			if slices.Contains(throttleKeys, strings.ToLower(k)) {
				return noticeThrottle
			}
		}
	}
	return noticeError
}

func isNull(raw []byte) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func isEmpty(raw []byte) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "[]", "{}", `""`, "false", "0":
		return true
	}
	return false
}
