package app

import (
	"errors"
	"fmt"
	"slices"
)

// Checkpoint store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreNATS     = "nats"
)

// StoreKinds lists the accepted checkpoint store backends.
var StoreKinds = []string{StoreMemory, StoreFile, StorePostgres, StoreNATS}

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string
	// Overrides replace parameter defaults, keyed by parameter name.
	Overrides map[string]any

	ContinueFromLastRun bool
	SkipCompleted       bool

	// CheckpointStore selects the backend; see StoreKinds.
	CheckpointStore string
	// WorkspaceRoot overrides PIPEGRID_WORKSPACE when set.
	WorkspaceRoot string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.CheckpointStore == "" {
		cfg.CheckpointStore = StoreFile
	}
	if !slices.Contains(StoreKinds, cfg.CheckpointStore) {
		return nil, fmt.Errorf("invalid checkpoint store '%s': must be one of %v", cfg.CheckpointStore, StoreKinds)
	}
	if cfg.HealthcheckPort < 0 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	if cfg.Overrides == nil {
		cfg.Overrides = map[string]any{}
	}
	return &cfg, nil
}
