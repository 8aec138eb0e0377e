package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// NotebookPath points at a single .hcl notebook file or a directory of
	// them.
	NotebookPath string
	// TargetCell is the id of the cell to compute. Empty means the last
	// registered cell.
	TargetCell string

	LogFormat string
	LogLevel  string

	// EventsURL, when set, enables the socket.io diagnostics emitter.
	EventsURL       string
	EventsNamespace string
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.NotebookPath == "" {
		return nil, errors.New("NotebookPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
