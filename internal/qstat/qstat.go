// Package qstat turns the XML dump printed by `qstat -f -xml` into a map from
// job identifier to coarse job status.
package qstat

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Status is the coarse lifecycle state of a scheduler job.
type Status string

const (
	Submitted Status = "SUBMITTED"
	Running   Status = "RUNNING"
	Unknown   Status = "UNKNOWN"
)

func (s Status) String() string { return string(s) }

// CodeTable maps the single-letter state codes printed by Grid Engine onto
// Status values. Any character of Unknown wins over any character of Running.
type CodeTable struct {
	Unknown string
	Running string
}

// DefaultCodes is the mapping used when a workflow does not override it:
// deleting or error states are UNKNOWN, running, transferring and suspended
// jobs are RUNNING, everything else is SUBMITTED.
var DefaultCodes = CodeTable{Unknown: "dE", Running: "rts"}

// Classify returns the Status for a raw state string such as "qw" or "Eqw".
func (c CodeTable) Classify(state string) Status {
	switch {
	case strings.ContainsAny(state, c.Unknown):
		return Unknown
	case strings.ContainsAny(state, c.Running):
		return Running
	default:
		return Submitted
	}
}

type jobList struct {
	JobNumber *string `xml:"JB_job_number"`
	State     string  `xml:"state"`
}

// Parse walks every job_list element in dump, wherever it is nested, and
// classifies its state. An empty job list is valid; a document without a root
// element is not.
func Parse(dump string, codes CodeTable) (map[string]Status, error) {
	dec := xml.NewDecoder(strings.NewReader(dump))
	jobs := make(map[string]Status)
	sawRoot := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Dump: dump, Err: err}
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true
		if start.Name.Local != "job_list" {
			continue
		}

		var job jobList
		if err := dec.DecodeElement(&job, &start); err != nil {
			return nil, &ParseError{Dump: dump, Err: err}
		}
		if job.JobNumber == nil || strings.TrimSpace(*job.JobNumber) == "" {
			return nil, &ParseError{Dump: dump, Err: errors.New("job_list entry without JB_job_number")}
		}
		jobs[strings.TrimSpace(*job.JobNumber)] = codes.Classify(strings.TrimSpace(job.State))
	}

	if !sawRoot {
		return nil, &ParseError{Dump: dump, Err: errors.New("no root element")}
	}
	return jobs, nil
}

// ErrStatusParse is the kind of every error returned by Parse.
var ErrStatusParse = errors.New("could not parse qstat output")

// ParseError keeps the raw dump so it can be logged next to the failure.
type ParseError struct {
	Dump string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", ErrStatusParse, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrStatusParse, e.Err} }
