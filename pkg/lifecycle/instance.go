package lifecycle

// Status is the derived state of an instance, computed at query time from
// live daemon state - there is no persisted record to read it from.
type Status string

const (
	StatusStopped  Status = "STOPPED"
	StatusStarting Status = "STARTING"
	StatusRunning  Status = "RUNNING"
)

// Endpoint is one reachable address for an instance, derived from an
// ExposeRule and the static kind->port map.
type Endpoint struct {
	Kind string `json:"kind"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Instance is the ephemeral view of a (challenge, team) pair, derived
// entirely from live container/network labels at query time.
type Instance struct {
	Status        Status     `json:"status"`
	Timeout       int        `json:"timeout"`
	Endpoints     []Endpoint `json:"endpoints,omitempty"`
	RemainingTime *int64     `json:"remaining_time"`
}
