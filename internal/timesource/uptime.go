package timesource

import "time"

// Uptime is a monotonic millisecond counter since it was created
type Uptime struct {
	start time.Time
}

// NewUptime starts counting from now
func NewUptime() *Uptime {
	return &Uptime{start: time.Now()}
}

// Millis returns the elapsed milliseconds. It never goes backwards, even
// when the wall clock is stepped by a time sync.
func (u *Uptime) Millis() uint64 {
	return uint64(time.Since(u.start).Milliseconds())
}
