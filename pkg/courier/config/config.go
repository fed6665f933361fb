package config

import (
	"fmt"
	"log/slog"

	"github.com/couriergo/courier/pkg/courier"
	"github.com/couriergo/courier/pkg/courier/faultlog"
	"github.com/couriergo/courier/pkg/courier/observability"
)

// Settings holds file-loadable bus settings.
type Settings struct {
	// FaultLog configures the subscriber fault journal.
	FaultLog FaultLogSettings `yaml:"fault_log" json:"fault_log"`

	// Observability toggles OTel metrics and tracing.
	Observability ObservabilitySettings `yaml:"observability" json:"observability"`
}

// FaultLogSettings configures the fault journal.
type FaultLogSettings struct {
	// Enabled turns the journal on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Path is the SQLite database file. Empty means an in-memory journal.
	Path string `yaml:"path" json:"path"`

	// MaxRecords bounds the in-memory journal. Ignored for SQLite.
	MaxRecords int `yaml:"max_records" json:"max_records"`
}

// ObservabilitySettings toggles OTel instrumentation.
type ObservabilitySettings struct {
	Metrics bool `yaml:"metrics" json:"metrics"`
	Tracing bool `yaml:"tracing" json:"tracing"`
}

// Build assembles a courier.Config from the settings. The returned cleanup
// function closes the fault journal, if one was created, and must be
// called when the bus is discarded. Logger may be nil.
func (s Settings) Build(logger *slog.Logger) (courier.Config, func() error, error) {
	cfg := courier.Config{Logger: logger}
	cleanup := func() error { return nil }

	if s.Observability.Metrics {
		cfg.Metrics = observability.NewMetricsRecorder()
	}
	if s.Observability.Tracing {
		cfg.Spans = observability.NewSpanManager()
	}

	if s.FaultLog.Enabled {
		var journal faultlog.Journal
		if s.FaultLog.Path != "" {
			sqliteJournal, err := faultlog.NewSQLiteJournal(s.FaultLog.Path)
			if err != nil {
				return courier.Config{}, nil, fmt.Errorf("open fault journal: %w", err)
			}
			journal = sqliteJournal
		} else {
			journal = faultlog.NewMemoryJournal(s.FaultLog.MaxRecords)
		}
		cfg.OnFault = faultlog.Hook(journal, logger)
		cleanup = journal.Close
	}

	return cfg, cleanup, nil
}
