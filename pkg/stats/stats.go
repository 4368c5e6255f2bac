// Package stats tracks process-wide tarpit counters.
//
// The registry is shared by every listener and session; all mutation is a
// single atomic add per field, so it is safe from any goroutine without
// locking. Current never drops below zero as long as each admitted session
// calls Release exactly once.
package stats

import (
	"sync/atomic"
	"time"
)

// Registry holds the daemon's live counters.
type Registry struct {
	current   atomic.Int64
	total     atomic.Uint64
	bytes     atomic.Uint64
	startedAt time.Time
}

// Snapshot is a point-in-time read of the registry. Fields are read
// independently, so it is consistent per-field rather than across fields.
type Snapshot struct {
	CurrentClients int64         `json:"current_clients"`
	TotalClients   uint64        `json:"total_clients"`
	TotalBytes     uint64        `json:"total_bytes"`
	Uptime         time.Duration `json:"uptime"`
}

// NewRegistry creates a registry with the uptime clock started now.
func NewRegistry() *Registry {
	return &Registry{startedAt: time.Now()}
}

// Admit increments the live client count and returns the new value.
// It does not touch the total; callers that decide to reject must undo
// with Retract so rejected connections never count as clients.
func (r *Registry) Admit() int64 {
	return r.current.Add(1)
}

// Confirm records an admitted session in the lifetime total.
func (r *Registry) Confirm() {
	r.total.Add(1)
}

// Retract undoes an Admit that lost the admission race.
func (r *Registry) Retract() int64 {
	return r.current.Add(-1)
}

// Release ends an admitted session and returns the remaining client count.
func (r *Registry) Release() int64 {
	return r.current.Add(-1)
}

// AddBytes accounts bytes successfully written to a peer.
func (r *Registry) AddBytes(n int) {
	r.bytes.Add(uint64(n))
}

// Current returns the live client count.
func (r *Registry) Current() int64 {
	return r.current.Load()
}

// StartedAt returns the instant the registry was created.
func (r *Registry) StartedAt() time.Time {
	return r.startedAt
}

// Snapshot reads all counters plus elapsed uptime.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		CurrentClients: r.current.Load(),
		TotalClients:   r.total.Load(),
		TotalBytes:     r.bytes.Load(),
		Uptime:         time.Since(r.startedAt),
	}
}
