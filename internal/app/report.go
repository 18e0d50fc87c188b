package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// Row is the status of one target as shown to the user.
type Row struct {
	Target string `json:"target" yaml:"target"`
	JobID  string `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	Status string `json:"status" yaml:"status"`
}

func render(w io.Writer, format string, rows []Row) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	case formatTable, "":
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("TARGET", "JOB ID", "STATUS")
		for _, r := range rows {
			t.Row(r.Target, r.JobID, r.Status)
		}
		_, err := fmt.Fprintln(w, t.Render())
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
