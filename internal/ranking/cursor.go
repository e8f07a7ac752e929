package ranking

// Cursor is the operator's selection over the last ranked list. The zero
// value has nothing selected. It is not safe for concurrent use.
type Cursor struct {
	id string
}

// Selected returns the selected id, if any.
func (c *Cursor) Selected() (string, bool) {
	return c.id, c.id != ""
}

// Select selects id. An empty id clears the selection.
func (c *Cursor) Select(id string) {
	c.id = id
}

// Toggle selects id, or clears the selection when id is already selected.
func (c *Cursor) Toggle(id string) {
	if c.id == id {
		c.id = ""
		return
	}
	c.id = id
}

// Clear drops the selection.
func (c *Cursor) Clear() {
	c.id = ""
}

// Next moves one contact down the list, stopping at the last one.
func (c *Cursor) Next(list []Contact) (string, bool) {
	return c.step(list, 1)
}

// Previous moves one contact up the list, stopping at the first one.
func (c *Cursor) Previous(list []Contact) (string, bool) {
	return c.step(list, -1)
}

// step moves the selection by delta. With no selection, or when the
// selected contact has left the list, it lands on the first contact.
func (c *Cursor) step(list []Contact, delta int) (string, bool) {
	if len(list) == 0 {
		return c.Selected()
	}
	idx := -1
	for i := range list {
		if list[i].ID == c.id {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = 0
	} else {
		idx = min(max(idx+delta, 0), len(list)-1)
	}
	c.id = list[idx].ID
	return c.id, true
}
