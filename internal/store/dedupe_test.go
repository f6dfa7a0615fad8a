package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupe_KeepsFirstOccurrence(t *testing.T) {
	t.Parallel()

	items := []row{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}, {ID: 1, Name: "dup"}, {ID: 0}}
	unique, removed := Dedupe(items, func(r row) (int, bool) { return r.ID, r.ID != 0 })

	assert.Equal(t, []row{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, unique)
	assert.Equal(t, 2, removed)
}

func TestDedupeFile_PreservesOrder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "videos.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"videoId": "b", "title": "second"},
  {"videoId": "a", "title": "first"},
  {"videoId": "b", "title": "again"},
  {"title": "no id"}
]`), 0o644))

	removed, err := DedupeFile(path, "videoId")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"title\": \"second\",\n    \"videoId\": \"b\"\n  },\n  {\n    \"title\": \"first\",\n    \"videoId\": \"a\"\n  }\n]", string(data))

	again, err := DedupeFile(path, "videoId")
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestDedupeFile_RejectsNonList(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "videos.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"videoId":"a"}`), 0o644))

	_, err := DedupeFile(path, "videoId")
	assert.Error(t, err)
}

func TestDedupeFile_KeysKeepTheirJSONKind(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "videos.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"videoId": 1, "title": "number"},
  {"videoId": "1", "title": "string"},
  {"videoId": true, "title": "bool"},
  {"videoId": "true", "title": "string bool"},
  {"videoId": 1, "title": "number again"}
]`), 0o644))

	removed, err := DedupeFile(path, "videoId")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	var out []map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	titles := make([]string, 0, len(out))
	for _, o := range out {
		titles = append(titles, o["title"].(string))
	}
	assert.Equal(t, []string{"number", "string", "bool", "string bool"}, titles)
}

func TestFieldKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`"abc"`, "string:abc", true},
		{`42`, "number:42", true},
		{`"42"`, "string:42", true},
		{`false`, "bool:false", true},
		{`""`, "string:", false},
		{`null`, "", false},
		{``, "", false},
	}
	for _, tt := range tests {
		got, ok := fieldKey(json.RawMessage(tt.raw))
		assert.Equal(t, tt.ok, ok, tt.raw)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.raw)
		}
	}
}
