package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_rooms_active",
		Help: "Rooms with at least one participant.",
	})
	ParticipantsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collab_participants_active",
		Help: "Participants currently connected to a room.",
	})
	BroadcastsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_broadcasts_sent_total",
		Help: "Frames delivered to room recipients.",
	})
	BroadcastsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collab_broadcasts_dropped_total",
		Help: "Frames skipped because a recipient was gone or backed up.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
