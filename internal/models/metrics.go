package models

const (
	ComponentGUID     = "com.webgeoservices.counter_queue"
	AgentVersion      = "0.0.1"
	ReportDuration    = 60
	MetricTodoCount   = "Component/queue/Todo/[Count]"
	MetricDoingCount  = "Component/queue/Doing/[Count]"
	MetricFailedCount = "Component/queue/Failed/[Count]"
)

// QueueCounts is a point-in-time read of the three queue lists. The three
// values come from separate reads and are not consistent with each other.
type QueueCounts struct {
	Todo   int64 `json:"todo"`
	Doing  int64 `json:"doing"`
	Failed int64 `json:"failed"`
}

type AgentInfo struct {
	Host    string `json:"host"`
	PID     int    `json:"pid"`
	Version string `json:"version"`
}

type Payload struct {
	Agent      AgentInfo   `json:"agent"`
	Components []Component `json:"components"`
}

type Component struct {
	Name     string           `json:"name"`
	GUID     string           `json:"guid"`
	Duration int              `json:"duration"`
	Metrics  map[string]int64 `json:"metrics"`
}

// StatusResponse is the acknowledgement body of an accepted report.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of a rejected report.
type ErrorResponse struct {
	Error string `json:"error"`
}
