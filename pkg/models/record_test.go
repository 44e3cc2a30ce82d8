package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_SetNotifiesKeyWatchers(t *testing.T) {
	r := NewRecord("m1", map[string]interface{}{"state": "stopped"})

	var seen []Change
	r.Watch("state", func(ch Change) { seen = append(seen, ch) })
	r.Watch("name", func(ch Change) { t.Fatalf("unexpected change on %s", ch.Key) })

	assert.True(t, r.Set("state", "running"))
	assert.False(t, r.Set("state", "running"), "equal value is silent")

	require.Len(t, seen, 1)
	assert.Equal(t, "stopped", seen[0].Old)
	assert.Equal(t, "running", seen[0].New)
}

func TestRecord_SetAllNotifiesAfterStoring(t *testing.T) {
	r := NewRecord("m1", nil)

	var observed []interface{}
	r.Watch("a", func(ch Change) {
		observed = append(observed, ch.Record.Get("b"))
	})

	changed := r.SetAll(map[string]interface{}{"a": 1, "b": 2})

	assert.Equal(t, []string{"a", "b"}, changed)
	assert.Equal(t, []interface{}{2}, observed)
}

func TestRecord_DeepEqualValues(t *testing.T) {
	r := NewRecord("m1", map[string]interface{}{"tags": []interface{}{"a", "b"}})
	calls := 0
	r.OnChange(func(Change) { calls++ })

	r.Set("tags", []interface{}{"a", "b"})
	assert.Equal(t, 0, calls)

	r.Set("tags", []interface{}{"a"})
	assert.Equal(t, 1, calls)
}

func TestRecord_NestedRecordsCompareByIdentity(t *testing.T) {
	r := NewRecord("m1", nil)
	a := NewRecord("x", nil)
	b := NewRecord("x", nil)

	assert.True(t, r.Set("vm", a))
	assert.False(t, r.Set("vm", a))
	assert.True(t, r.Set("vm", b))
}

func TestRecord_UnsetAndWatcherCount(t *testing.T) {
	r := NewRecord("m1", map[string]interface{}{"name": "web"})
	sub := r.Watch("name", func(Change) {})
	assert.Equal(t, 1, r.WatcherCount("name"))

	assert.True(t, r.Unset("name"))
	assert.False(t, r.Unset("name"))
	assert.False(t, r.Has("name"))

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 0, r.WatcherCount("name"))
}
