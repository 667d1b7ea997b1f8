package collab

// Palette of visually distinct participant colors, assigned in order.
var Palette = []string{
	"#E74C3C", // red
	"#3498DB", // blue
	"#2ECC71", // green
	"#F39C12", // orange
	"#9B59B6", // purple
	"#1ABC9C", // teal
	"#E91E8C", // pink
	"#F1C40F", // yellow
	"#34495E", // slate
	"#795548", // brown
}

// colorAllocator hands out palette colors within one room: first unused
// color wins, and once the palette is exhausted the least-recently-assigned
// color is reused. Callers hold the registry lock.
type colorAllocator struct {
	assigned []string // in assignment order, oldest first
}

func newColorAllocator() *colorAllocator {
	return &colorAllocator{}
}

// assign picks a color for a joining participant.
func (a *colorAllocator) assign() string {
	for _, c := range Palette {
		if !a.inUse(c) {
			a.assigned = append(a.assigned, c)
			return c
		}
	}
	// All colors taken: cycle, reusing the oldest assignment.
	c := a.assigned[0]
	a.assigned = append(a.assigned[1:], c)
	return c
}

// release returns one assignment of c to the pool.
func (a *colorAllocator) release(c string) {
	for i, v := range a.assigned {
		if v == c {
			a.assigned = append(a.assigned[:i], a.assigned[i+1:]...)
			return
		}
	}
}

func (a *colorAllocator) inUse(c string) bool {
	for _, v := range a.assigned {
		if v == c {
			return true
		}
	}
	return false
}
