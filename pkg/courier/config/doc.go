/*
Package config loads courier bus settings from YAML or JSON files.

# Overview

Settings is the file-level schema: it toggles OTel metrics and tracing and
configures the subscriber fault journal. Build turns loaded Settings into a
courier.Config ready to pass to courier.New.

# File Loading

	settings, err := config.FromFile("courier.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	cfg, cleanup, err := settings.Build(slog.Default())
	if err != nil {
	    log.Fatal(err)
	}
	defer cleanup()

	bus := courier.New(cfg)

# File Schema

	fault_log:
	  enabled: true
	  path: ./faults.db   # empty = in-memory journal
	  max_records: 10000  # in-memory journal bound
	observability:
	  metrics: true
	  tracing: false

All fields default to off: an empty file yields a bus with no
instrumentation and no fault journal.
*/
package config
