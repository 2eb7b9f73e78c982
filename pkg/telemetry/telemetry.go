package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Poll kinds for the polls_total counter.
const (
	PollRooms    = "rooms"
	PollMessages = "messages"
)

var (
	pollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opschat_polls_total",
		Help: "Poll attempts by kind (rooms|messages) and result (ok|error).",
	}, []string{"kind", "result"})

	sendsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opschat_sends_total",
		Help: "Optimistic send attempts by result (ok|error).",
	}, []string{"result"})

	refreshesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "opschat_directory_refreshes_total",
		Help: "On-demand directory refreshes (send follow-ups, provisioning).",
	})

	roomsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opschat_rooms_created_total",
		Help: "Room provisioning attempts by result (ok|error).",
	}, []string{"result"})

	eventsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "opschat_events_dropped_total",
		Help: "Engine events dropped because the event buffer was full.",
	})

	cachedRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "opschat_cached_rooms",
		Help: "Rooms currently held in the directory cache.",
	})

	cachedMessages = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "opschat_cached_messages",
		Help: "Messages currently held in the active room cache.",
	})
)

func init() {
	prometheus.MustRegister(
		pollsTotal,
		sendsTotal,
		refreshesTotal,
		roomsCreatedTotal,
		eventsDroppedTotal,
		cachedRooms,
		cachedMessages,
	)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordPoll counts one poll attempt of the given kind.
func RecordPoll(kind string, err error) {
	pollsTotal.WithLabelValues(kind, result(err)).Inc()
}

// RecordSend counts one send attempt.
func RecordSend(err error) {
	sendsTotal.WithLabelValues(result(err)).Inc()
}

// RecordRefresh counts one on-demand directory refresh.
func RecordRefresh() {
	refreshesTotal.Inc()
}

// RecordRoomCreated counts one provisioning attempt.
func RecordRoomCreated(err error) {
	roomsCreatedTotal.WithLabelValues(result(err)).Inc()
}

// RecordEventDropped counts one dropped engine event.
func RecordEventDropped() {
	eventsDroppedTotal.Inc()
}

// SetCachedRooms records the current directory cache size.
func SetCachedRooms(n int) {
	cachedRooms.Set(float64(n))
}

// SetCachedMessages records the current active-room cache size.
func SetCachedMessages(n int) {
	cachedMessages.Set(float64(n))
}
