package agent

import (
	"sync"

	"canvas-collab/internal/collab"
)

// canvasState is the agent's local rendering model: the canvas items as
// assembled from remote operations plus local edits. Owned exclusively by
// one agent; other tabs only reach it through the network channel.
type canvasState struct {
	mu    sync.RWMutex
	items map[string]collab.CanvasItem
}

func newCanvasState() *canvasState {
	return &canvasState{items: map[string]collab.CanvasItem{}}
}

// apply dispatches one canvas operation by kind. Unknown targets are
// ignored: operations may race with deletes from other participants.
func (s *canvasState) apply(op collab.Operation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch op.Kind {
	case collab.OpAdd:
		if op.Add != nil {
			s.items[op.Add.ID] = cloneItem(*op.Add)
		}
	case collab.OpUpdate:
		it, ok := s.items[op.ItemID]
		if !ok || op.Update == nil {
			return
		}
		if it.Props == nil {
			it.Props = map[string]string{}
		}
		for k, v := range op.Update.Fields {
			it.Props[k] = v
		}
		s.items[op.ItemID] = it
	case collab.OpDelete:
		for _, id := range op.ItemIDs {
			delete(s.items, id)
		}
	case collab.OpMove:
		if it, ok := s.items[op.ItemID]; ok && op.Move != nil {
			it.X, it.Y = op.Move.X, op.Move.Y
			s.items[op.ItemID] = it
		}
	case collab.OpResize:
		if it, ok := s.items[op.ItemID]; ok && op.Resize != nil {
			it.Width, it.Height = op.Resize.Width, op.Resize.Height
			s.items[op.ItemID] = it
		}
	}
}

// Items returns a copy of the current canvas model.
func (s *canvasState) Items() map[string]collab.CanvasItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]collab.CanvasItem, len(s.items))
	for id, it := range s.items {
		out[id] = cloneItem(it)
	}
	return out
}

func cloneItem(it collab.CanvasItem) collab.CanvasItem {
	if it.Props != nil {
		props := make(map[string]string, len(it.Props))
		for k, v := range it.Props {
			props[k] = v
		}
		it.Props = props
	}
	return it
}
