package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/montecarlo/sim/broker"
)

// BrokerConfig is the queue service connection.
type BrokerConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	VHost    string `yaml:"vhost" env:"VHOST"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
}

// Config represents the full --config YAML structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Broker BrokerConfig      `yaml:"broker" envPrefix:"MONTECARLO_BROKER_"`
	Queues broker.Queues     `yaml:"queues" envPrefix:"MONTECARLO_QUEUE_"`
	Poll   broker.PollConfig `yaml:"poll" envPrefix:"MONTECARLO_POLL_"`
}

// DefaultConfig targets a local RabbitMQ with the stock guest account.
func DefaultConfig() Config {
	return Config{
		Broker: BrokerConfig{
			Host:     "localhost",
			Port:     5672,
			VHost:    "/",
			Username: "guest",
			Password: "guest",
		},
		Queues: broker.DefaultQueues(),
		Poll:   broker.DefaultPollConfig(),
	}
}

// LoadConfig reads the YAML file at path (optional), applies MONTECARLO_*
// environment overrides, then fills remaining zero values with defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		defer f.Close()
		if cfg, err = decodeConfig(f); err != nil {
			return cfg, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// decodeConfig parses YAML with strict field checking: typos must cause errors.
func decodeConfig(r io.Reader) (Config, error) {
	var cfg Config
	data, err := io.ReadAll(r)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Broker.Host == "" {
		c.Broker.Host = d.Broker.Host
	}
	if c.Broker.Port == 0 {
		c.Broker.Port = d.Broker.Port
	}
	if c.Broker.VHost == "" {
		c.Broker.VHost = d.Broker.VHost
	}
	if c.Broker.Username == "" {
		c.Broker.Username = d.Broker.Username
		if c.Broker.Password == "" {
			c.Broker.Password = d.Broker.Password
		}
	}
	c.Queues = c.Queues.WithDefaults()
	c.Poll = c.Poll.WithDefaults()
}

func (c *Config) validate() error {
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		return fmt.Errorf("broker.port must be in [1, 65535], got %d", c.Broker.Port)
	}
	q := c.Queues
	if q.Model == q.Scenario || q.Model == q.Result || q.Scenario == q.Result {
		return fmt.Errorf("queue names must be distinct, got model=%q scenario=%q result=%q", q.Model, q.Scenario, q.Result)
	}
	return nil
}

// ConnConfig converts the broker section for broker.DialAMQP.
func (c Config) ConnConfig() broker.ConnConfig {
	return broker.ConnConfig{
		Host:     c.Broker.Host,
		Port:     c.Broker.Port,
		VHost:    c.Broker.VHost,
		Username: c.Broker.Username,
		Password: c.Broker.Password,
	}
}

// openBroker connects to the configured queue service.
func openBroker(ctx context.Context, cfg Config) (broker.Broker, error) {
	return broker.DialAMQP(ctx, cfg.ConnConfig())
}
