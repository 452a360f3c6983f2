// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cfengine/cfengine/calculatedfield"
	"github.com/cfengine/cfengine/internal/validation"
	"github.com/cfengine/cfengine/log"
)

// Store types
const (
	MemoryStore = "memory"
	BoltStore   = "bolt"
	RedisStore  = "redis"
)

// Queue types
const (
	MemoryQueue = "memory"
	NatsQueue   = "nats"
)

// Config represents the engine configuration
type Config struct {
	// Name identifies the engine. It prefixes the consumer groups.
	Name   string                             `yaml:"name"`
	Log    LogConfig                          `yaml:"log"`
	Actors ActorsConfig                       `yaml:"actors"`
	Store  StoreConfig                        `yaml:"store"`
	Queue  QueueConfig                        `yaml:"queue"`
	Fields []*calculatedfield.CalculatedField `yaml:"fields"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level string `yaml:"level"`
}

// ActorsConfig configures the entity actors
type ActorsConfig struct {
	// MailboxSize bounds the mailbox of every actor. Zero means unbounded.
	MailboxSize int `yaml:"mailboxSize"`
	// IdleTimeout evicts the actors idle for that long. Zero disables eviction.
	IdleTimeout      time.Duration `yaml:"idleTimeout"`
	EvictionInterval time.Duration `yaml:"evictionInterval"`
	// MaxRestarts bounds the restarts of an actor within RestartWindow
	MaxRestarts   uint32        `yaml:"maxRestarts"`
	RestartWindow time.Duration `yaml:"restartWindow"`
}

// StoreConfig configures the state store
type StoreConfig struct {
	Type        string      `yaml:"type"`
	Compression bool        `yaml:"compression"`
	Bolt        BoltConfig  `yaml:"bolt"`
	Redis       RedisConfig `yaml:"redis"`
}

// BoltConfig configures the BoltDB store
type BoltConfig struct {
	Path   string `yaml:"path"`
	Bucket string `yaml:"bucket"`
}

// RedisConfig configures the Redis store
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// QueueConfig configures the telemetry queue
type QueueConfig struct {
	Type string `yaml:"type"`
	// Topic carries the telemetry records
	Topic string `yaml:"topic"`
	// ResultTopic receives the calculated values. Empty means they are logged.
	ResultTopic string `yaml:"resultTopic"`
	// Partitions is the number of partitions of the topic
	Partitions int `yaml:"partitions"`
	// Groups is the number of consumer loops sharing the partitions
	Groups         int           `yaml:"groups"`
	PollTimeout    time.Duration `yaml:"pollTimeout"`
	PollErrorDelay time.Duration `yaml:"pollErrorDelay"`
	CommitRetries  int           `yaml:"commitRetries"`
	AwaitTimeout   time.Duration `yaml:"awaitTimeout"`
	Nats           NatsConfig    `yaml:"nats"`
}

// NatsConfig configures the NATS queue
type NatsConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subjectPrefix"`
	BufferSize    int    `yaml:"bufferSize"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Name: "cfengine",
		Log:  LogConfig{Level: log.InfoLevel.String()},
		Actors: ActorsConfig{
			IdleTimeout:      10 * time.Minute,
			EvictionInterval: 30 * time.Second,
			MaxRestarts:      3,
			RestartWindow:    time.Minute,
		},
		Store: StoreConfig{
			Type:  MemoryStore,
			Bolt:  BoltConfig{Bucket: "cf_states"},
			Redis: RedisConfig{Prefix: "cf:state:"},
		},
		Queue: QueueConfig{
			Type:           MemoryQueue,
			Topic:          "cf-telemetry",
			Partitions:     12,
			Groups:         3,
			PollTimeout:    time.Second,
			PollErrorDelay: time.Second,
			CommitRetries:  3,
			AwaitTimeout:   30 * time.Second,
			Nats:           NatsConfig{SubjectPrefix: "cf"},
		},
	}
}

// Load reads the YAML file at the given path on top of the defaults
func Load(path string) (*Config, error) {
	bytea, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(bytea)
}

// Parse decodes a YAML document on top of the defaults and validates the result
func Parse(bytea []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(bytea, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LogLevel returns the configured log level
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Validate checks the configuration. Every violation is reported.
func (c *Config) Validate() error {
	_, levelErr := log.ParseLevel(c.Log.Level)
	chain := validation.New(validation.AllErrors()).
		AddValidator(validation.NewNameValidator("name", c.Name)).
		AddAssertionf(levelErr == nil, "the [log.level] %q is invalid", c.Log.Level).
		AddAssertion(c.Actors.MailboxSize >= 0, "the [actors.mailboxSize] must not be negative").
		AddAssertion(c.Actors.IdleTimeout >= 0, "the [actors.idleTimeout] must not be negative").
		AddAssertion(c.Actors.IdleTimeout == 0 || c.Actors.EvictionInterval > 0,
			"the [actors.evictionInterval] must be greater than zero when idle eviction is enabled").
		AddAssertion(c.Actors.MaxRestarts == 0 || c.Actors.RestartWindow > 0,
			"the [actors.restartWindow] must be greater than zero when restarts are bounded").
		AddValidator(validation.NewEmptyStringValidator("queue.topic", c.Queue.Topic)).
		AddAssertion(c.Queue.Partitions > 0, "the [queue.partitions] must be greater than zero").
		AddAssertion(c.Queue.Groups > 0, "the [queue.groups] must be greater than zero").
		AddAssertion(c.Queue.Groups <= c.Queue.Partitions, "the [queue.groups] must not exceed [queue.partitions]").
		AddValidator(validation.NewPositiveDurationValidator("queue.pollTimeout", c.Queue.PollTimeout)).
		AddValidator(validation.NewPositiveDurationValidator("queue.pollErrorDelay", c.Queue.PollErrorDelay)).
		AddValidator(validation.NewPositiveDurationValidator("queue.awaitTimeout", c.Queue.AwaitTimeout)).
		AddAssertion(c.Queue.CommitRetries > 0, "the [queue.commitRetries] must be greater than zero")

	switch c.Store.Type {
	case MemoryStore:
	case BoltStore:
		chain.AddValidator(validation.NewEmptyStringValidator("store.bolt.path", c.Store.Bolt.Path))
	case RedisStore:
		chain.AddValidator(validation.NewEmptyStringValidator("store.redis.addr", c.Store.Redis.Addr))
	default:
		chain.AddAssertionf(false, "the [store.type] %q is not supported", c.Store.Type)
	}

	switch c.Queue.Type {
	case MemoryQueue:
	case NatsQueue:
		chain.AddValidator(validation.NewEmptyStringValidator("queue.nats.url", c.Queue.Nats.URL))
	default:
		chain.AddAssertionf(false, "the [queue.type] %q is not supported", c.Queue.Type)
	}

	for _, field := range c.Fields {
		if err := field.Validate(); err != nil {
			chain.AddAssertionf(false, "the field [%s] is invalid: %v", field.ID, err)
		}
	}
	return chain.Validate()
}
