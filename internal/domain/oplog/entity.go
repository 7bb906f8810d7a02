package oplog

import "time"

// Entry is a persisted record of a failed workspace operation
type Entry struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	Controller  string    `json:"controller"`
	Operation   string    `json:"operation"`
	Kind        string    `json:"kind"`
	Status      int       `json:"status,omitempty"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
