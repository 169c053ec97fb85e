package portprobe

import (
	uuid "github.com/satori/go.uuid"
)

// NewTaskID returns the last 10 raw bytes of a fresh UUIDv4 as a string (not
// the hex text form), unique enough to identify a short-lived task.
func NewTaskID() string {
	full := uuid.NewV4()
	last10 := full[len(full)-10:]
	return string(last10)
}
