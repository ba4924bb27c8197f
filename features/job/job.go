package job

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("failed job not found")

// Job is a generation message that could not be processed. Payload is the
// original message body, republished verbatim on retry.
type Job struct {
	ID        string          `json:"id"`
	CourseID  string          `json:"course_id"`
	Handler   string          `json:"handler"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}

// Filter narrows a listing. Zero values mean no restriction.
type Filter struct {
	CourseID string
	Limit    int
}
