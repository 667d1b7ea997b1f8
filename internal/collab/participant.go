package collab

// Cursor is a live 2D pointer position on the canvas.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Participant is one connected user inside one room. Cursor and Selection
// are ephemeral presence state, never persisted.
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`

	Cursor *Cursor `json:"cursor,omitempty"`

	// Selection is nil until the participant first reports one.
	// An empty non-nil slice means "selection cleared".
	Selection []string `json:"selection,omitempty"`
}

// clone returns a copy safe to hand outside the registry lock.
func (p *Participant) clone() Participant {
	cp := *p
	if p.Cursor != nil {
		c := *p.Cursor
		cp.Cursor = &c
	}
	if p.Selection != nil {
		cp.Selection = append([]string(nil), p.Selection...)
	}
	return cp
}
