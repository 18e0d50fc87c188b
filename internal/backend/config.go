package backend

import (
	"path/filepath"
	"time"

	"github.com/vk/qsubgo/internal/invoker"
	"github.com/vk/qsubgo/internal/qstat"
	"github.com/vk/qsubgo/internal/script"
	"github.com/vk/qsubgo/internal/tracker"
)

const DefaultStateDir = ".qsubgo"

// Config holds the settings a backend is constructed from. Zero fields take
// the defaults filled in by withDefaults.
type Config struct {
	StateDir            string
	LogDir              string
	ParallelEnvironment string
	CommandTimeout      time.Duration

	QstatCommand string
	QsubCommand  string
	QdelCommand  string

	Codes qstat.CodeTable
}

func (c Config) withDefaults() Config {
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.StateDir, "logs")
	}
	if c.ParallelEnvironment == "" {
		c.ParallelEnvironment = script.DefaultParallelEnvironment
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = invoker.DefaultTimeout
	}
	if c.QstatCommand == "" {
		c.QstatCommand = "qstat"
	}
	if c.QsubCommand == "" {
		c.QsubCommand = "qsub"
	}
	if c.QdelCommand == "" {
		c.QdelCommand = "qdel"
	}
	if c.Codes == (qstat.CodeTable{}) {
		c.Codes = qstat.DefaultCodes
	}
	return c
}

// TrackerPath is where the target -> job ID map is persisted.
func (c Config) TrackerPath() string {
	return filepath.Join(c.withDefaults().StateDir, tracker.FileName)
}
