package state

import (
	"time"

	"xraas_nd/internal/ndalert"
)

// Current is the alert a source is displaying right now.
type Current struct {
	Source    string        `json:"source"`
	Alert     ndalert.Alert `json:"alert"`
	FirstSeen time.Time     `json:"first_seen"`
	LastSeen  time.Time     `json:"last_seen"`
	MsgCount  int           `json:"msg_count"`
}

// Stats summarises tracker activity.
type Stats struct {
	Active   int `json:"active"`
	Updates  int `json:"updates"`
	Cleared  int `json:"cleared"`
	Expired  int `json:"expired"`
	Rejected int `json:"rejected"`
}
