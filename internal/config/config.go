// Package config loads the venue's INI configuration per the network,
// cpu, rates, kafka and log sections, with POSTGRES_* environment
// variables overriding the file when set. Parsing itself lives outside
// the core matching components, which only ever see the typed Config
// below.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Network holds the three listener definitions the session layer
// accepts connections on.
type Network struct {
	URL         string
	PortTCPUp   int
	PortTCPDown int
	PortUDP     int
}

// CPU holds the core assignments used for thread/goroutine pinning.
// Load rejects a config where CoresNetwork and CoresApp share a core;
// CoreSystem is not checked against either list.
type CPU struct {
	CoreSystem   int
	CoresNetwork []int
	CoresApp     []int
}

// Rates holds the periodic-timer intervals, expressed in Hz.
type Rates struct {
	PriceFeedRate float64
	MonitorRate   float64
}

// Kafka holds the kafka section's broker settings. cmd/server uses
// only Broker, as the Redis address for the login rate limiter, and
// runs without a limiter when it is empty; ConsumerGroup and PollRate
// are loaded but not used.
type Kafka struct {
	Broker        string
	ConsumerGroup string
	PollRate      float64
}

// Log holds the initial log level and output target.
type Log struct {
	Level  string
	Output string
}

// Postgres holds the credential-store connection parameters. Each
// field falls back to the matching INI value when its env var is
// unset, per spec's env-var precedence rule.
type Postgres struct {
	Host     string
	Port     int
	User     string
	Password string
	DB       string
}

// Config is the fully resolved, typed configuration passed down to
// every component at startup. Nothing below internal/config re-parses
// the INI file.
type Config struct {
	Network  Network
	CPU      CPU
	Rates    Rates
	Kafka    Kafka
	Log      Log
	Postgres Postgres
}

// Load reads path (an INI file) through viper, applies POSTGRES_*
// environment overrides, and returns the resolved Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")

	v.SetDefault("rates.price_feed_rate", 1.0)
	v.SetDefault("rates.monitor_rate", 0.1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	v.SetEnvPrefix("")
	v.AutomaticEnv()

	cfg := &Config{
		Network: Network{
			URL:         v.GetString("network.url"),
			PortTCPUp:   v.GetInt("network.port_tcp_up"),
			PortTCPDown: v.GetInt("network.port_tcp_down"),
			PortUDP:     v.GetInt("network.port_udp"),
		},
		CPU: CPU{
			CoreSystem:   v.GetInt("cpu.core_system"),
			CoresNetwork: parseCoreList(v.GetString("cpu.cores_network")),
			CoresApp:     parseCoreList(v.GetString("cpu.cores_app")),
		},
		Rates: Rates{
			PriceFeedRate: v.GetFloat64("rates.price_feed_rate"),
			MonitorRate:   v.GetFloat64("rates.monitor_rate"),
		},
		Kafka: Kafka{
			Broker:        v.GetString("kafka.broker"),
			ConsumerGroup: v.GetString("kafka.consumer_group"),
			PollRate:      v.GetFloat64("kafka.poll_rate"),
		},
		Log: Log{
			Level:  v.GetString("log.level"),
			Output: v.GetString("log.output"),
		},
		Postgres: Postgres{
			Host:     envOr(v, "POSTGRES_HOST", "postgres.host"),
			Port:     envOrInt(v, "POSTGRES_PORT", "postgres.port"),
			User:     envOr(v, "POSTGRES_USER", "postgres.user"),
			Password: envOr(v, "POSTGRES_PASSWORD", "postgres.password"),
			DB:       envOr(v, "POSTGRES_DB", "postgres.db"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	network := append(append([]int{}, c.CPU.CoresNetwork...), c.CPU.CoresApp...)
	seen := make(map[int]bool, len(network))
	for _, core := range network {
		if seen[core] {
			return fmt.Errorf("config: cores_network and cores_app must be disjoint, core %d appears in both", core)
		}
		seen[core] = true
	}
	return nil
}

func parseCoreList(raw string) []int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	cores := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		cores = append(cores, n)
	}
	return cores
}

func envOr(v *viper.Viper, envKey, iniKey string) string {
	if val := v.GetString(envKey); val != "" {
		return val
	}
	return v.GetString(iniKey)
}

func envOrInt(v *viper.Viper, envKey, iniKey string) int {
	if val := v.GetString(envKey); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return v.GetInt(iniKey)
}
