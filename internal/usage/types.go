package usage

import "time"

// Event is one line of the usage log: a single tool or skill invocation
// seen by the reconciler.
type Event struct {
	Timestamp     time.Time `json:"ts"`
	InvocationID  string    `json:"invocation_id"`
	SessionID     string    `json:"session_id,omitempty"`
	Invoked       string    `json:"invoked"`
	PromptSnippet string    `json:"prompt_snippet"`
	Fulfilled     bool      `json:"fulfilled"`
}

// Counts holds invocation totals for one dimension value.
type Counts struct {
	Invocations int64 `json:"invocations"`
	Fulfilled   int64 `json:"fulfilled"`
}

func (c *Counts) add(fulfilled bool) {
	c.Invocations++
	if fulfilled {
		c.Fulfilled++
	}
}

// Summary aggregates a usage log.
type Summary struct {
	Total     Counts            `json:"total"`
	ByInvoked map[string]Counts `json:"by_invoked"`
	BySession map[string]Counts `json:"by_session"`
	// Malformed counts lines that could not be decoded.
	Malformed int `json:"malformed,omitempty"`
}
