package publishers

import (
	"time"

	"github.com/google/uuid"
)

// Event describes one completed issue call. Response is the server body as
// returned, never parsed.
type Event struct {
	ID          string            `json:"id"`
	RequestID   string            `json:"request_id"`
	Fingerprint string            `json:"payload_sha256"`
	StatusCode  int               `json:"status_code"`
	Response    string            `json:"response"`
	Labels      map[string]string `json:"labels,omitempty"`
	IssuedAt    time.Time         `json:"issued_at"`
}

// NewEvent constructs an Event for the given request and server reply.
func NewEvent(requestID, fingerprint string, status int, response string, labels map[string]string) Event {
	return Event{
		ID:          uuid.NewString(),
		RequestID:   requestID,
		Fingerprint: fingerprint,
		StatusCode:  status,
		Response:    response,
		Labels:      labels,
		IssuedAt:    time.Now().UTC(),
	}
}
