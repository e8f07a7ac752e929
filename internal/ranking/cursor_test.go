package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/aisradar/internal/tracks"
)

func contacts(ids ...string) []Contact {
	out := make([]Contact, len(ids))
	for i, id := range ids {
		out[i] = Contact{KinematicRecord: tracks.KinematicRecord{ID: id}}
	}
	return out
}

func TestCursor_Navigation(t *testing.T) {
	t.Parallel()
	list := contacts("a", "b", "c")

	var c Cursor
	_, ok := c.Selected()
	assert.False(t, ok)

	id, ok := c.Next(list)
	assert.True(t, ok)
	assert.Equal(t, "a", id, "first Next lands on the top contact")

	c.Next(list)
	id, _ = c.Next(list)
	assert.Equal(t, "c", id)
	id, _ = c.Next(list)
	assert.Equal(t, "c", id, "clamped at the end")

	id, _ = c.Previous(list)
	assert.Equal(t, "b", id)
	c.Previous(list)
	id, _ = c.Previous(list)
	assert.Equal(t, "a", id, "clamped at the start")
}

func TestCursor_PreviousWithoutSelection(t *testing.T) {
	t.Parallel()
	var c Cursor
	id, ok := c.Previous(contacts("a", "b"))
	assert.True(t, ok)
	assert.Equal(t, "a", id)
}

func TestCursor_SelectedContactLeftList(t *testing.T) {
	t.Parallel()
	var c Cursor
	c.Select("gone")
	id, _ := c.Next(contacts("a", "b"))
	assert.Equal(t, "a", id)
}

func TestCursor_EmptyList(t *testing.T) {
	t.Parallel()
	var c Cursor
	_, ok := c.Next(nil)
	assert.False(t, ok)

	c.Select("x")
	id, ok := c.Previous(nil)
	assert.True(t, ok)
	assert.Equal(t, "x", id, "selection kept when there is nothing to move over")
}

func TestCursor_ToggleAndClear(t *testing.T) {
	t.Parallel()
	var c Cursor
	c.Toggle("a")
	id, ok := c.Selected()
	assert.True(t, ok)
	assert.Equal(t, "a", id)

	c.Toggle("b")
	id, _ = c.Selected()
	assert.Equal(t, "b", id)

	c.Toggle("b")
	_, ok = c.Selected()
	assert.False(t, ok)

	c.Select("a")
	c.Clear()
	_, ok = c.Selected()
	assert.False(t, ok)
}
