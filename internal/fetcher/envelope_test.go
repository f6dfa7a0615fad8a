package fetcher

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		keys []string
		want []string
	}{
		{name: "bare array", body: `[{"a":1},{"a":2}]`, keys: DefaultEnvelope, want: []string{`{"a":1}`, `{"a":2}`}},
		{name: "response envelope", body: `{"errors":[],"response":[{"a":1}]}`, keys: DefaultEnvelope, want: []string{`{"a":1}`}},
		{name: "custom key", body: `{"count":1,"teams":[{"id":57}]}`, keys: []string{"teams"}, want: []string{`{"id":57}`}},
		{name: "single object", body: `{"GameId":5}`, keys: DefaultEnvelope, want: []string{`{"GameId":5}`}},
		{name: "null envelope", body: `{"data":null}`, keys: DefaultEnvelope, want: []string{}},
		{name: "null body", body: `null`, keys: DefaultEnvelope, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Unwrap([]byte(tt.body), tt.keys)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.JSONEq(t, tt.want[i], string(got[i]))
			}
		})
	}
}

func TestUnwrap_Malformed(t *testing.T) {
	t.Parallel()

	for _, body := range []string{``, `"text"`, `[1,`, `42`} {
		_, err := Unwrap([]byte(body), DefaultEnvelope)
		require.Error(t, err, body)
		assert.True(t, errors.Is(err, ErrMalformedPayload), body)
	}
}

func TestBodyNotice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		body string
		want notice
	}{
		{`{"errors":{"requests":"limit reached"}}`, noticeThrottle},
		{`{"errors":{"rateLimit":"Too many requests"}}`, noticeThrottle},
		{`{"rateLimit":"slow down"}`, noticeThrottle},
		{`{"errors":{"token":"Error/Missing application key"}}`, noticeError},
		{`{"errors":{"season":"field is required"}}`, noticeError},
		{`{"errors":["something went wrong"]}`, noticeError},
		{`{"errors":[],"response":[]}`, noticeNone},
		{`{"errors":{}}`, noticeNone},
		{`[{"errors":"x"}]`, noticeNone},
		{`{"response":[{"id":1}]}`, noticeNone},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, bodyNotice([]byte(tc.body)), tc.body)
	}
}
