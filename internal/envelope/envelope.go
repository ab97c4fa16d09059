// Package envelope produces the uniform response body every tool call
// returns, success or failure.
package envelope

import (
	"encoding/json"
	"time"

	"github.com/orahub/oracle-mcp/internal/oraerr"
)

// Metadata accompanies every response.
type Metadata struct {
	Tool             string   `json:"tool"`
	ExecutionMS      int64    `json:"execution_ms"`
	OracleVersion    string   `json:"oracle_version,omitempty"`
	CapabilitiesUsed []string `json:"capabilities_used,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	Truncated        bool     `json:"truncated,omitempty"`
	CorrelationID    string   `json:"correlation_id,omitempty"`
}

// ErrorBody is the client-safe error object.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// Envelope is the uniform response. Exactly one of Data and Error is
// non-null, and Status agrees with which.
type Envelope struct {
	Status   string     `json:"status"`
	Data     any        `json:"data"`
	Metadata Metadata   `json:"metadata"`
	Error    *ErrorBody `json:"error"`
}

// Success wraps handler data.
func Success(data any, meta Metadata) *Envelope {
	if data == nil {
		data = map[string]any{}
	}
	return &Envelope{Status: "success", Data: data, Metadata: meta}
}

// Failure wraps an error. Anything that is not already a taxonomy error
// is folded into kind internal, so raw driver text never reaches the
// client.
func Failure(err error, meta Metadata) *Envelope {
	oe := oraerr.AsError(err)
	if meta.CorrelationID == "" {
		meta.CorrelationID = oe.CorrelationID
	}
	return &Envelope{
		Status:   "error",
		Metadata: meta,
		Error: &ErrorBody{
			Kind:    string(oe.Kind),
			Code:    oe.Code,
			Message: oe.Message,
			Hint:    oe.Hint,
		},
	}
}

// JSON renders the envelope for the MCP text content block.
func (e *Envelope) JSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		// Data failed to serialize; degrade to a minimal error body.
		fallback := Failure(oraerr.Internal(err), e.Metadata)
		b, _ = json.Marshal(fallback)
	}
	return string(b)
}

// IsError reports whether the envelope carries an error.
func (e *Envelope) IsError() bool {
	return e.Status == "error"
}

// DurationMS converts an elapsed duration for the metadata field.
func DurationMS(d time.Duration) int64 {
	return d.Milliseconds()
}
