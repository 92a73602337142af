package wsengine

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Stats counts dispatcher activity. A nil *Stats is a valid no-op
// receiver. All methods are safe for concurrent use.
type Stats struct {
	connectionsAccepted atomic.Int64
	connectionsRejected atomic.Int64
	requests            atomic.Int64
	upgrades            atomic.Int64
	upgradesRejected    atomic.Int64
	framesReceived      atomic.Int64
	framesDiscarded     atomic.Int64
	bytesSent           atomic.Int64

	startTime time.Time
}

func newStats() *Stats {
	return &Stats{startTime: time.Now()}
}

func (s *Stats) connectionAccepted() {
	if s == nil {
		return
	}
	s.connectionsAccepted.Add(1)
}

func (s *Stats) connectionRejected() {
	if s == nil {
		return
	}
	s.connectionsRejected.Add(1)
}

func (s *Stats) requestServed() {
	if s == nil {
		return
	}
	s.requests.Add(1)
}

func (s *Stats) upgraded() {
	if s == nil {
		return
	}
	s.upgrades.Add(1)
}

func (s *Stats) upgradeRejected() {
	if s == nil {
		return
	}
	s.upgradesRejected.Add(1)
}

func (s *Stats) frameReceived() {
	if s == nil {
		return
	}
	s.framesReceived.Add(1)
}

func (s *Stats) frameDiscarded() {
	if s == nil {
		return
	}
	s.framesDiscarded.Add(1)
}

func (s *Stats) sent(n int) {
	if s == nil {
		return
	}
	s.bytesSent.Add(int64(n))
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Uptime              string `json:"uptime"`
	ConnectionsAccepted int64  `json:"connections_accepted"`
	ConnectionsRejected int64  `json:"connections_rejected"`
	Requests            int64  `json:"requests"`
	Upgrades            int64  `json:"upgrades"`
	UpgradesRejected    int64  `json:"upgrades_rejected"`
	ActiveWebSockets    int64  `json:"active_websockets"`
	FramesReceived      int64  `json:"frames_received"`
	FramesDiscarded     int64  `json:"frames_discarded"`
	BytesSent           int64  `json:"bytes_sent"`
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		Uptime:              time.Since(s.startTime).Truncate(time.Second).String(),
		ConnectionsAccepted: s.connectionsAccepted.Load(),
		ConnectionsRejected: s.connectionsRejected.Load(),
		Requests:            s.requests.Load(),
		Upgrades:            s.upgrades.Load(),
		UpgradesRejected:    s.upgradesRejected.Load(),
		FramesReceived:      s.framesReceived.Load(),
		FramesDiscarded:     s.framesDiscarded.Load(),
		BytesSent:           s.bytesSent.Load(),
	}
}

// JSON returns the snapshot as indented JSON.
func (snap StatsSnapshot) JSON() []byte {
	data, _ := json.MarshalIndent(snap, "", "  ")
	return data
}
