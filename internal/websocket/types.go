package websocket

import "time"

// EventType names the kind of an event
type EventType string

const (
	// EventTypeJobStarted is sent when a conversion job begins reading
	EventTypeJobStarted EventType = "job_started"
	// EventTypeJobProgress carries the percentage done of a running job
	EventTypeJobProgress EventType = "job_progress"
	// EventTypeJobFinished is sent once per job, whatever its outcome
	EventTypeJobFinished EventType = "job_finished"
	// EventTypeConnection is sent when a client joins or leaves
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event is the envelope of every message pushed to clients. JobID is
// empty for hub events.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	JobID     string      `json:"job_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// JobStartedEvent describes a job that was accepted
type JobStartedEvent struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceFormat string `json:"source_format,omitempty"`
	TargetFormat string `json:"target_format,omitempty"`
}

// JobProgressEvent reports how far a job has advanced
type JobProgressEvent struct {
	Percent   int    `json:"percent"`
	State     string `json:"state"`
	Processed int    `json:"processed"`
	Written   int    `json:"written"`
}

// JobFinishedEvent summarizes a job that ended
type JobFinishedEvent struct {
	State      string  `json:"state"`
	Processed  int     `json:"processed"`
	Written    int     `json:"written"`
	Skipped    int     `json:"skipped"`
	Failed     int     `json:"failed"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
	Code       int     `json:"code,omitempty"`
}

// ConnectionEvent tells other clients that someone joined or left
type ConnectionEvent struct {
	Action    string `json:"action"` // connected or disconnected
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
}

// ClientMessage is read from clients: subscribe or ping
type ClientMessage struct {
	Type         string               `json:"type"`
	Subscription *SubscriptionRequest `json:"subscription,omitempty"`
}

// SubscriptionRequest narrows the events a client receives. Empty lists
// match everything.
type SubscriptionRequest struct {
	Events []EventType `json:"events,omitempty"`
	Jobs   []string    `json:"jobs,omitempty"`
}

func (s *SubscriptionRequest) matches(event Event) bool {
	if len(s.Events) > 0 && !contains(s.Events, event.Type) {
		return false
	}
	if len(s.Jobs) > 0 && event.JobID != "" && !contains(s.Jobs, event.JobID) {
		return false
	}
	return true
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
