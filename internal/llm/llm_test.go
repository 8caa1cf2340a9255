package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/notetasks/internal/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `[{"task_name":"a"}]`, StripCodeFence("```json\n[{\"task_name\":\"a\"}]\n```"))
	assert.Equal(t, `[]`, StripCodeFence("  []  "))
	assert.Equal(t, `[]`, StripCodeFence("```[]```"))
}

func TestValidateTaskItem(t *testing.T) {
	decode := func(s string) map[string]any {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(s), &m))
		return m
	}

	assert.NoError(t, ValidateTaskItem(decode(`{"task_name":"Buy milk","bbox":[1,2,3,4]}`)))
	assert.NoError(t, ValidateTaskItem(decode(`{"category":"Title","text":"Notes"}`)))
	assert.NoError(t, ValidateTaskItem(decode(`{"task_name":"x","assignee":null}`)))
	assert.Error(t, ValidateTaskItem(decode(`{"text":"orphan"}`)))
	assert.Error(t, ValidateTaskItem(decode(`{"task_name":"x","bbox":[1,2]}`)))
}

func TestSanitizeTaskItem(t *testing.T) {
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"task_name":"x",
		"assignee":"  ",
		"due_date":"null",
		"priority":3,
		"description":{"nested":true},
		"bbox":[1,"2",3,4]
	}`), &m))

	dropped := SanitizeTaskItem(m)

	assert.ElementsMatch(t, []string{"description", "bbox"}, dropped)
	assert.NotContains(t, m, "assignee")
	assert.NotContains(t, m, "due_date")
	assert.Equal(t, "3", m["priority"])
	assert.NoError(t, ValidateTaskItem(m))
}

func TestBuildTaskArraySchema_AcceptsCanonicalPriorities(t *testing.T) {
	schema, err := CompileSchema(BuildTaskArraySchema())
	require.NoError(t, err)

	decode := func(s string) any {
		var v any
		require.NoError(t, json.Unmarshal([]byte(s), &v))
		return v
	}
	assert.NoError(t, schema.Validate(decode(`[{"task_name":"a","priority":"urgent"}]`)))
	assert.Error(t, schema.Validate(decode(`[{"task_name":"a","priority":"someday"}]`)))
	assert.Error(t, schema.Validate(decode(`{"task_name":"a"}`)))
}

func TestImageDataURL(t *testing.T) {
	u := ImageDataURL(entity.Image{Data: []byte("hi"), MIMEType: "image/png"})
	assert.Equal(t, "data:image/png;base64,aGk=", u)
}

func TestSendJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"upstream"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	headers := map[string]string{"Authorization": "Bearer k"}

	raw, status, err := SendJSON(context.Background(), srv.Client(), srv.URL+"/ok", map[string]any{"a": 1}, headers, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok":true}`, string(raw))

	raw, status, err = SendJSON(context.Background(), srv.Client(), srv.URL+"/fail", map[string]any{}, headers, discardLogger())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, string(raw), "upstream")
}

func TestBuildTaskPrompt_MentionsFields(t *testing.T) {
	p := BuildTaskPrompt()
	for _, f := range []string{"task_name", "assignee", "due_date", "priority", "bbox"} {
		assert.Contains(t, p, f)
	}
}
