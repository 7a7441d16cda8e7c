// Package config loads the YAML description of a fleet of monitored CT
// logs, the way filippo.io/sunlight loads its own YAML-described fleet of
// sequenced logs (gopkg.in/yaml.v3).
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StateBackendConfig selects and configures one of the statestore.Backend
// implementations for a single log's persisted trust state. Exactly one of
// File, SQLite, S3, or DynamoDB should be set; the zero value means "don't persist
// state between runs".
type StateBackendConfig struct {
	File     *FileBackendConfig     `yaml:"file,omitempty"`
	SQLite   *SQLiteBackendConfig   `yaml:"sqlite,omitempty"`
	S3       *S3BackendConfig       `yaml:"s3,omitempty"`
	DynamoDB *DynamoDBBackendConfig `yaml:"dynamodb,omitempty"`
}

// FileBackendConfig configures a statestore.FileBackend.
type FileBackendConfig struct {
	Dir string `yaml:"dir"`
}

// SQLiteBackendConfig configures a statestore.SQLiteBackend: a single local
// database file, for single-process deployments that want crash-safe state
// without the bare-file backend's one-blob-per-key layout.
type SQLiteBackendConfig struct {
	Path string `yaml:"path"`
}

// S3BackendConfig configures a statestore.S3Backend. Region and credentials
// come from the process's ambient AWS configuration (environment,
// ~/.aws/config, instance role), the same as the AWS SDK does everywhere
// else.
type S3BackendConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// DynamoDBBackendConfig configures a statestore.DynamoDBBackend.
type DynamoDBBackendConfig struct {
	Table string `yaml:"table"`
}

// LogConfig describes one CT log to monitor.
type LogConfig struct {
	// Name identifies the log in logs and metrics; it has no bearing on
	// the wire protocol.
	Name string `yaml:"name"`

	// BaseURL is the log's HTTPS submission prefix, e.g.
	// "https://ct.googleapis.com/logs/argon2024/".
	BaseURL string `yaml:"base_url"`

	// PubKeyBase64 is the log's DER-encoded SubjectPublicKeyInfo, base64
	// encoded, as published in the log's metadata.
	PubKeyBase64 string `yaml:"pub_key"`

	// StateBackend optionally persists this log's trust state across
	// process restarts. Omit to start fresh (NewFromLatestTreeHead) every
	// run.
	StateBackend *StateBackendConfig `yaml:"state_backend,omitempty"`

	// PollInterval is how often to call Update. Defaults to 5 minutes if
	// zero.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// PubKeyDER decodes PubKeyBase64.
func (c LogConfig) PubKeyDER() ([]byte, error) {
	der, err := base64.StdEncoding.DecodeString(c.PubKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("config: log %q: decoding pub_key: %w", c.Name, err)
	}
	return der, nil
}

// Config is a fleet of monitored logs, as loaded from a YAML file.
type Config struct {
	Logs []LogConfig `yaml:"logs"`
}

// DefaultPollInterval applies when a LogConfig doesn't set poll_interval.
const DefaultPollInterval = 5 * time.Minute

// Load reads and parses a Config from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	for i := range cfg.Logs {
		if cfg.Logs[i].PollInterval == 0 {
			cfg.Logs[i].PollInterval = DefaultPollInterval
		}
		if cfg.Logs[i].Name == "" {
			cfg.Logs[i].Name = cfg.Logs[i].BaseURL
		}
	}
	return &cfg, nil
}
