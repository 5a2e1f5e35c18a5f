// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the council service configuration.
//
// Configuration comes from environment variables, optionally preloaded from a
// .env file in the working directory. All knobs have defaults suitable for
// local development except the provider API key and the MongoDB URI, which
// are deployment-specific.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting for the council service.
//
// # Description
//
// Fields map 1:1 to environment variables via envconfig tags. The zero-value
// defaults mirror the documented deployment defaults:
//
//   - GROQ_MODEL defaults to the instant tier for rate-limit headroom.
//   - DATABASE_NAME defaults to legal_war_room.
//   - DELIBERATION_ROUNDS defaults to 2 and must be at least 1.
//   - COUNCIL_CASE_TIMEOUT_SECONDS bounds one full deliberation wall-clock.
//
// # Limitations
//
//   - MONGODB_URI left empty puts the service in lightweight in-memory mode;
//     that is a main.go decision, not a validation failure here.
type Config struct {
	GroqAPIKey      string  `envconfig:"GROQ_API_KEY"`
	GroqModel       string  `envconfig:"GROQ_MODEL" default:"llama-3.1-8b-instant"`
	GroqTemperature float32 `envconfig:"GROQ_TEMPERATURE" default:"0.7"`
	GroqMaxTokens   int     `envconfig:"GROQ_MAX_TOKENS" default:"1500"`

	MongoURI     string `envconfig:"MONGODB_URI"`
	DatabaseName string `envconfig:"DATABASE_NAME" default:"legal_war_room"`

	// DeliberationRounds is the number of proposal/attack cycles before the
	// synthesizer runs. More rounds means a more thorough debate and a longer
	// pipeline.
	DeliberationRounds int `envconfig:"DELIBERATION_ROUNDS" default:"2"`

	// RetryBudget is the number of additional generation attempts after the
	// first failure, applied uniformly to every persona call.
	RetryBudget int `envconfig:"LLM_RETRY_BUDGET" default:"2"`

	BackendType string `envconfig:"LLM_BACKEND_TYPE" default:"groq"`

	Port               string `envconfig:"COUNCIL_PORT" default:"8000"`
	CaseTimeoutSeconds int    `envconfig:"COUNCIL_CASE_TIMEOUT_SECONDS" default:"900"`
}

// Load reads the environment (after a best-effort .env preload) and validates
// the result.
//
// # Outputs
//
//   - *Config: Populated configuration.
//   - error: Non-nil on a malformed variable or an invalid combination.
func Load() (*Config, error) {
	// Missing .env is the normal case in containers.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the orchestrator cannot run with.
// Zero rounds is a configuration error, not a runtime condition.
func (c *Config) Validate() error {
	if c.DeliberationRounds < 1 {
		return fmt.Errorf("DELIBERATION_ROUNDS must be >= 1, got %d", c.DeliberationRounds)
	}
	if c.RetryBudget < 0 {
		return fmt.Errorf("LLM_RETRY_BUDGET must be >= 0, got %d", c.RetryBudget)
	}
	if c.CaseTimeoutSeconds < 1 {
		return fmt.Errorf("COUNCIL_CASE_TIMEOUT_SECONDS must be >= 1, got %d", c.CaseTimeoutSeconds)
	}
	if c.GroqTemperature < 0 || c.GroqTemperature > 2 {
		return fmt.Errorf("GROQ_TEMPERATURE must be in [0, 2], got %g", c.GroqTemperature)
	}
	switch c.BackendType {
	case "groq", "openai", "ollama":
	default:
		return fmt.Errorf("LLM_BACKEND_TYPE must be one of groq, openai, ollama; got %q", c.BackendType)
	}
	return nil
}
