package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"canvas-collab/internal/store"
)

// SnapshotsAPI is the read surface over persisted canvas state. Writes go
// through the collaboration path only; REST never mutates canvas bytes.
type SnapshotsAPI struct{ DB *store.Postgres }

type snapshotResponse struct {
	ProjectID string    `json:"projectId"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// List returns up to 100 projects with persisted snapshots.
func (a *SnapshotsAPI) List(w http.ResponseWriter, r *http.Request) {
	snaps, err := a.DB.ListSnapshots(r.Context(), 100, 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]snapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		resp = append(resp, snapshotResponse{
			ProjectID: s.ProjectID, Version: s.Version, UpdatedAt: s.UpdatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Get streams a project's snapshot bytes and version header.
func (a *SnapshotsAPI) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	s, err := a.DB.GetSnapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Snapshot-Version", fmt.Sprintf("%d", s.Version))
	_, _ = w.Write(s.Bytes)
}
