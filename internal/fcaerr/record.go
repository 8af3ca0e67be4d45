package fcaerr

import (
	"fmt"
	"strings"
	"time"
)

// ErrorRecord is a data line dropped while errors are being skipped
type ErrorRecord struct {
	Code      Code      `json:"code"`
	Phase     string    `json:"phase"`
	Line      int       `json:"line"`
	Text      string    `json:"text"`
	Error     error     `json:"-"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewErrorRecord creates a record for err with the current timestamp
func NewErrorRecord(err error, line int, text string) ErrorRecord {
	record := ErrorRecord{
		Code:      CodeOf(err),
		Line:      line,
		Text:      text,
		Error:     err,
		Timestamp: time.Now(),
	}
	if err != nil {
		record.Message = err.Error()
	}
	return record
}

// WithPhase names the pipeline phase that dropped the line
func (r ErrorRecord) WithPhase(phase string) ErrorRecord {
	r.Phase = phase
	return r
}

// String returns a formatted record
func (r ErrorRecord) String() string {
	var sb strings.Builder
	if r.Phase != "" {
		fmt.Fprintf(&sb, "[%s] ", r.Phase)
	}
	fmt.Fprintf(&sb, "line %d: %s", r.Line, r.Message)
	return sb.String()
}
