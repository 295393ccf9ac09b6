// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the answers service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianAnswers/llm"
	"github.com/AleutianAI/AleutianAnswers/retrieval"
)

// defaultPath is used when ANSWERS_CONFIG is not set.
const defaultPath = "/etc/aleutian/answers.yaml"

// AnswersConfig is the full service configuration.
type AnswersConfig struct {
	// Retrieval controls the passage retriever strategy and limits.
	Retrieval retrieval.Config `yaml:"retrieval"`

	// Models holds the generation and embedding model settings.
	Models ModelsConfig `yaml:"models"`
}

// ModelsConfig names the models the pipeline runs.
//
// Fast handles question condensing where speed matters more than
// precision; Slow handles answer synthesis where the temperature is
// kept low so the answer stays grounded in the passages.
type ModelsConfig struct {
	Fast      llm.ModelConfig `yaml:"fast"`
	Slow      llm.ModelConfig `yaml:"slow"`
	Embedding string          `yaml:"embedding"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() AnswersConfig {
	return AnswersConfig{
		Retrieval: retrieval.DefaultConfig(),
		Models: ModelsConfig{
			Fast: llm.ModelConfig{Model: "gpt-4o", Temperature: 0.7},
			Slow: llm.ModelConfig{Model: "gpt-4o", Temperature: 0.1},
		},
	}
}

// Load reads the config file, creating it with defaults on first run.
//
// # Description
//
// The path comes from the ANSWERS_CONFIG environment variable, falling
// back to /etc/aleutian/answers.yaml. A missing file is created with
// DefaultConfig so the deployment has an editable copy. Loaded values
// are validated; an invalid retrieval section is corrected with a
// warning rather than rejected.
//
// # Outputs
//
//   - *AnswersConfig: The loaded configuration.
//   - error: Non-nil if the file cannot be created, read, or parsed.
func Load() (*AnswersConfig, error) {
	path := os.Getenv("ANSWERS_CONFIG")
	if path == "" {
		path = defaultPath
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from an explicit path.
func LoadFrom(path string) (*AnswersConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config file: %w", err)
	}

	cfg.Retrieval = cfg.Retrieval.Validate()
	return &cfg, nil
}

func createDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	defaultCfg := DefaultConfig()
	data, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
