// Package config loads process configuration from a YAML file, environment
// variables, and viper defaults, following the same load-once-at-startup
// convention across the api, scheduler and worker binaries (sandboxrunner
// takes its settings from flags and environment variables instead).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Scheduler  SchedulerConfig
	Runner     RunnerConfig
	Sandbox    SandboxConfig
	Alert      AlertConfig
	Escalation EscalationConfig
	Heartbeat  HeartbeatConfig
	Admin      AdminConfig
	Data       DataConfig
	Metrics    MetricsConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdleConns   int
}

type RedisConfig struct {
	URL string
}

type SchedulerConfig struct {
	TickInterval          time.Duration
	GlobalConcurrency     int
	PerTenantConcurrency  int
	BackoffFailThreshold  int
	BackoffMaxMultiplier  float64
}

type RunnerConfig struct {
	WorkerCount   int
	LeaseGrace    time.Duration
	SandboxGrace  time.Duration
	SweepInterval time.Duration
}

type SandboxConfig struct {
	BrowserExecutablePath string
	PythonInterpreter     string
	NodeInterpreter       string
}

type AlertConfig struct {
	Endpoint       string
	TransportToken string
	ChunkSize      int
}

type EscalationConfig struct {
	Enabled     bool
	Endpoint    string
	Token       string
	Model       string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type HeartbeatConfig struct {
	Anchors  []string // "HH:MM" wall-clock anchors
	Timezone string
}

type AdminConfig struct {
	JWKSURL   string
	Issuer    string
	AudTag    string
	MonitorToken string
}

type DataConfig struct {
	ArtifactsDir string
	DomainsFile  string
}

type MetricsConfig struct {
	RemoteWriteURL  string
	TenantHeader    string
	BatchSize       int
	FlushInterval   int // seconds
	RemoteWriteAuth string
}

// Load reads config.yaml (if present) plus a .env file, applies defaults,
// then lets explicit environment variables win. It is called exactly once
// per process; the returned Config is treated as immutable afterward.
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("E2EMON")
	viper.AutomaticEnv()

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("database.maxconnections", 25)
	viper.SetDefault("database.maxidleconns", 5)
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("scheduler.tickinterval", "1s")
	viper.SetDefault("scheduler.globalconcurrency", 50)
	viper.SetDefault("scheduler.pertenantconcurrency", 5)
	viper.SetDefault("scheduler.backofffailthreshold", 10)
	viper.SetDefault("scheduler.backoffmaxmultiplier", 4.0)
	viper.SetDefault("runner.workercount", 4)
	viper.SetDefault("runner.leasegrace", "5s")
	viper.SetDefault("runner.sandboxgrace", "5s")
	viper.SetDefault("runner.sweepinterval", "15s")
	viper.SetDefault("sandbox.browserexecutablepath", "/usr/bin/chromium")
	viper.SetDefault("sandbox.pythoninterpreter", "python3")
	viper.SetDefault("sandbox.nodeinterpreter", "node")
	viper.SetDefault("alert.chunksize", 4096)
	viper.SetDefault("escalation.enabled", false)
	viper.SetDefault("escalation.pollinterval", "10s")
	viper.SetDefault("escalation.polltimeout", "2h")
	viper.SetDefault("heartbeat.timezone", "UTC")
	viper.SetDefault("data.artifactsdir", "/data/artifacts")
	viper.SetDefault("data.domainsfile", "./config/domains.yaml")
	viper.SetDefault("metrics.tenantheader", "X-Scope-OrgID")
	viper.SetDefault("metrics.batchsize", 500)
	viper.SetDefault("metrics.flushinterval", 15)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if token := os.Getenv("ALERT_TRANSPORT_TOKEN"); token != "" {
		cfg.Alert.TransportToken = token
	}
	if token := os.Getenv("ESCALATION_TOKEN"); token != "" {
		cfg.Escalation.Token = token
	}
	if token := os.Getenv("MONITOR_TOKEN"); token != "" {
		cfg.Admin.MonitorToken = token
	}
	if token := os.Getenv("METRICS_REMOTE_WRITE_AUTH"); token != "" {
		cfg.Metrics.RemoteWriteAuth = token
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required")
	}

	return &cfg, nil
}
