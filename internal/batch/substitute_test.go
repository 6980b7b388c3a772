package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstitute(t *testing.T) {
	ids := map[string]string{"P1": "project-1", "T1": "task-2", "G": "tag-3"}

	payload := map[string]any{
		"name":       "P1",
		"note":       "T1",
		"project_id": "P1",
		"parent_id":  "T1",
		"count":      3,
		"tag_ids":    []any{"G", "tag-9", 4},
		"tags":       []any{"G"},
		"nested":     map[string]any{"parent_id": "T1"},
	}

	got := substitute(payload, ids)

	assert.Equal(t, "project-1", got["project_id"])
	assert.Equal(t, "task-2", got["parent_id"])
	assert.Equal(t, []any{"tag-3", "tag-9", 4}, got["tag_ids"])

	assert.Equal(t, "P1", got["name"], "non-reference fields are verbatim")
	assert.Equal(t, "T1", got["note"])
	assert.Equal(t, 3, got["count"])
	assert.Equal(t, []any{"G"}, got["tags"])
	assert.Equal(t, map[string]any{"parent_id": "T1"}, got["nested"])

	assert.Equal(t, "P1", payload["project_id"], "input is not modified")
	assert.Equal(t, []any{"G", "tag-9", 4}, payload["tag_ids"])
}

func TestSubstitute_ReferenceFields(t *testing.T) {
	ids := map[string]string{"F": "folder-1", "X": "task-7"}

	tests := []struct {
		name    string
		payload map[string]any
		key     string
		want    any
	}{
		{"id", map[string]any{"id": "X"}, "id", "task-7"},
		{"folder_id", map[string]any{"folder_id": "F"}, "folder_id", "folder-1"},
		{"string tag list", map[string]any{"tag_ids": []string{"F", "x"}}, "tag_ids", []string{"folder-1", "x"}},
		{"unknown id kept", map[string]any{"project_id": "P2"}, "project_id", "P2"},
		{"non-string kept", map[string]any{"parent_id": 12}, "parent_id", 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, substitute(tt.payload, ids)[tt.key])
		})
	}
}

func TestSubstitute_SubstringsLeftAlone(t *testing.T) {
	got := substitute(map[string]any{"project_id": "see P1"}, map[string]string{"P1": "project-1"})
	assert.Equal(t, "see P1", got["project_id"])
}

func TestSubstitute_NoListKeyAdded(t *testing.T) {
	got := substitute(map[string]any{"name": "x"}, map[string]string{"x": "task-1"})
	assert.Equal(t, map[string]any{"name": "x"}, got)
}

func TestSubstitute_NilPayload(t *testing.T) {
	got := substitute(nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
