/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads Sentinela's configuration: scheduling cadences,
// storage/queue backend selection, and HTTP/metrics bind addresses (spec.md
// §6). It follows the same layered flags/env/file approach the teacher
// uses, renamed to Sentinela's own settings and env prefix.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for a Sentinela role process.
type Config struct {
	configFileUsed string

	// LogLevel is the logging level (debug, info, warn, error).
	LogLevel string `mapstructure:"log-level"`

	// Controller configures the Controller role (spec.md 4.1).
	Controller ControllerConfig `mapstructure:"controller"`

	// Executor configures the Executor role (spec.md 4.2).
	Executor ExecutorConfig `mapstructure:"executor"`

	// Storage configures the Store backend (spec.md 4.7).
	Storage StorageConfig `mapstructure:"storage"`

	// Queue configures the Queue backend (spec.md 4.5/6).
	Queue QueueConfig `mapstructure:"queue"`

	// Heartbeat configures the cooperative-scheduler stall detector
	// (spec.md 4.4).
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`

	// HTTP configures the admin/status HTTP server (spec.md §6,
	// controller role only).
	HTTP HTTPConfig `mapstructure:"http"`

	// Metrics holds a metrics bind address. /metrics is served by the admin
	// HTTP server at HTTP.BindAddress; no listener reads this setting.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ControllerConfig configures the trigger loop, loader and procedures
// (spec.md 4.1, 4.6).
type ControllerConfig struct {
	// ProcessSchedule is controller_process_schedule, the cron on which the
	// trigger loop re-examines every Monitor.
	ProcessSchedule string `mapstructure:"process-schedule"`

	// MonitorsLoadSchedule is monitors_load_schedule, the cron on which the
	// loader checks for updated CodeModules.
	MonitorsLoadSchedule string `mapstructure:"monitors-load-schedule"`

	// StuckMonitorsSchedule is the monitors_stuck procedure's cron.
	StuckMonitorsSchedule string `mapstructure:"stuck-monitors-schedule"`

	// StuckMonitorsTolerance is how old queued_at/running_at must be before
	// the monitors_stuck procedure rescues a monitor.
	StuckMonitorsTolerance time.Duration `mapstructure:"stuck-monitors-tolerance"`

	// TriggerLoopTolerance bounds how stale the trigger loop's last run may
	// be before /status reports "degraded" (spec.md 4.1 Diagnostics).
	TriggerLoopTolerance time.Duration `mapstructure:"trigger-loop-tolerance"`

	// HistoryPruneSchedule is the cron on which the history_prune procedure
	// deletes old MonitorExecution/Event rows.
	HistoryPruneSchedule string `mapstructure:"history-prune-schedule"`

	// HistoryRetentionDays bounds how long MonitorExecution/Event rows are
	// kept before history_prune deletes them.
	HistoryRetentionDays int `mapstructure:"history-retention-days"`

	// ProcedureTickInterval is how often the Procedures runner checks every
	// registered procedure's cron.
	ProcedureTickInterval time.Duration `mapstructure:"procedure-tick-interval"`

	// ProcedureTolerance bounds how overdue a Procedure's run may be before
	// /status reports it as an issue.
	ProcedureTolerance time.Duration `mapstructure:"procedure-tolerance"`
}

// ExecutorConfig configures the Executor's worker pool, timeouts and
// per-monitor bounds (spec.md 4.2, 5).
type ExecutorConfig struct {
	// Concurrency bounds both the worker pool size and the inner
	// do-concurrently batch size for Issue updates (spec.md 9 notes this
	// dual use and that splitting it is recommended future work).
	Concurrency int `mapstructure:"concurrency"`

	// MonitorTimeout bounds one process_monitor task (executor_monitor_timeout).
	MonitorTimeout time.Duration `mapstructure:"monitor-timeout"`

	// MonitorHeartbeatTime is how often the keepalive child task refreshes
	// Monitor.last_heartbeat during a process_monitor task.
	MonitorHeartbeatTime time.Duration `mapstructure:"monitor-heartbeat-time"`

	// ReactionTimeout bounds one reaction callable invocation.
	ReactionTimeout time.Duration `mapstructure:"reaction-timeout"`

	// RequestTimeout bounds one action-request handler.
	RequestTimeout time.Duration `mapstructure:"request-timeout"`

	// MaxIssuesCreation bounds how many new Issues a single search task may
	// create before the run is recorded as failed.
	MaxIssuesCreation int `mapstructure:"max-issues-creation"`
}

// StorageConfig configures the Store backend (sqlite, postgres, mysql) and
// its connection pool (spec.md 5: application_database_settings).
type StorageConfig struct {
	Type       string           `mapstructure:"type"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
	PostgreSQL PostgreSQLConfig `mapstructure:"postgres"`
	MySQL      MySQLConfig      `mapstructure:"mysql"`

	// PoolSize is application_database_settings.pool_size.
	PoolSize int `mapstructure:"pool-size"`

	// AcquireTimeout is database_default_acquire_timeout.
	AcquireTimeout time.Duration `mapstructure:"acquire-timeout"`

	// QueryTimeout is database_default_query_timeout, applied as a
	// context deadline around every Store call.
	QueryTimeout time.Duration `mapstructure:"query-timeout"`
}

// SQLiteConfig configures SQLite storage.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgreSQLConfig configures PostgreSQL storage.
type PostgreSQLConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl-mode"`
}

// MySQLConfig configures MySQL/MariaDB storage.
type MySQLConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// QueueConfig configures the Queue backend (spec.md 4.5/6).
type QueueConfig struct {
	// Type selects "memory" or "sqs".
	Type string `mapstructure:"type"`

	// WaitMessageTime is queue_wait_message_time, the long-poll duration.
	WaitMessageTime time.Duration `mapstructure:"wait-message-time"`

	// MemoryCapacity bounds the in-memory backend's channel depth.
	MemoryCapacity int `mapstructure:"memory-capacity"`

	// SQS configures the external SQS-backed plugin.
	SQS SQSConfig `mapstructure:"sqs"`
}

// SQSConfig configures the AWS SQS Queue plugin. Credentials are taken from
// the standard AWS_* environment variables (spec.md §6), not from this
// struct.
type SQSConfig struct {
	QueueURL    string `mapstructure:"queue-url"`
	Region      string `mapstructure:"region"`
	EndpointURL string `mapstructure:"endpoint-url"`
}

// HeartbeatConfig configures the cooperative-scheduler stall detector.
type HeartbeatConfig struct {
	// Time is heartbeat_time, the expected wake interval.
	Time time.Duration `mapstructure:"time"`
}

// HTTPConfig configures the admin HTTP server (controller role only,
// spec.md §6).
type HTTPConfig struct {
	BindAddress string `mapstructure:"bind-address"`
}

// MetricsConfig holds the metrics bind address setting. It is loaded but
// not used to start a listener; see Config.Metrics.
type MetricsConfig struct {
	BindAddress string `mapstructure:"bind-address"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Controller: ControllerConfig{
			ProcessSchedule:        "* * * * *",
			MonitorsLoadSchedule:   "*/5 * * * *",
			StuckMonitorsSchedule:  "*/5 * * * *",
			StuckMonitorsTolerance: 30 * time.Minute,
			TriggerLoopTolerance:   2 * time.Minute,
			HistoryPruneSchedule:   "0 3 * * *",
			HistoryRetentionDays:   90,
			ProcedureTickInterval:  30 * time.Second,
			ProcedureTolerance:     10 * time.Minute,
		},
		Executor: ExecutorConfig{
			Concurrency:          10,
			MonitorTimeout:       5 * time.Minute,
			MonitorHeartbeatTime: 30 * time.Second,
			ReactionTimeout:      15 * time.Second,
			RequestTimeout:       30 * time.Second,
			MaxIssuesCreation:    1000,
		},
		Storage: StorageConfig{
			Type: "sqlite",
			SQLite: SQLiteConfig{
				Path: "/data/sentinela.db",
			},
			PostgreSQL: PostgreSQLConfig{
				Port:    5432,
				SSLMode: "require",
			},
			MySQL: MySQLConfig{
				Port: 3306,
			},
			PoolSize:       10,
			AcquireTimeout: 5 * time.Second,
			QueryTimeout:   30 * time.Second,
		},
		Queue: QueueConfig{
			Type:            "memory",
			WaitMessageTime: 20 * time.Second,
			MemoryCapacity:  1024,
		},
		Heartbeat: HeartbeatConfig{
			Time: 1 * time.Second,
		},
		HTTP: HTTPConfig{
			BindAddress: ":8080",
		},
		Metrics: MetricsConfig{
			BindAddress: ":9090",
		},
	}
}

// BindFlags binds configuration flags to pflags.
func BindFlags(flags *pflag.FlagSet) {
	d := DefaultConfig()

	flags.String("config", "", "Path to config file")
	flags.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")

	flags.String("controller.process-schedule", d.Controller.ProcessSchedule, "Cron schedule for the Controller trigger loop")
	flags.String("controller.monitors-load-schedule", d.Controller.MonitorsLoadSchedule, "Cron schedule for the monitor code module reload check")
	flags.String("controller.stuck-monitors-schedule", d.Controller.StuckMonitorsSchedule, "Cron schedule for the monitors_stuck procedure")
	flags.Duration("controller.stuck-monitors-tolerance", d.Controller.StuckMonitorsTolerance, "Age of queued_at/running_at before a monitor is considered stuck")
	flags.Duration("controller.trigger-loop-tolerance", d.Controller.TriggerLoopTolerance, "How stale the trigger loop may be before /status reports degraded")
	flags.String("controller.history-prune-schedule", d.Controller.HistoryPruneSchedule, "Cron schedule for the history_prune procedure")
	flags.Int("controller.history-retention-days", d.Controller.HistoryRetentionDays, "Days of MonitorExecution/Event history to retain")
	flags.Duration("controller.procedure-tick-interval", d.Controller.ProcedureTickInterval, "How often the Procedures runner checks registered procedure crons")
	flags.Duration("controller.procedure-tolerance", d.Controller.ProcedureTolerance, "How overdue a Procedure may run before /status reports it")

	flags.Int("executor.concurrency", d.Executor.Concurrency, "Executor worker pool size and inner batch concurrency")
	flags.Duration("executor.monitor-timeout", d.Executor.MonitorTimeout, "Timeout for one process_monitor task")
	flags.Duration("executor.monitor-heartbeat-time", d.Executor.MonitorHeartbeatTime, "Interval at which a running monitor's keepalive refreshes last_heartbeat")
	flags.Duration("executor.reaction-timeout", d.Executor.ReactionTimeout, "Timeout for one reaction callable")
	flags.Duration("executor.request-timeout", d.Executor.RequestTimeout, "Timeout for one action-request handler")
	flags.Int("executor.max-issues-creation", d.Executor.MaxIssuesCreation, "Maximum Issues a single search task may create")

	flags.String("storage.type", d.Storage.Type, "Storage backend type (sqlite, postgres, mysql)")
	flags.String("storage.sqlite.path", d.Storage.SQLite.Path, "Path to SQLite database file")
	flags.String("storage.postgres.host", "", "PostgreSQL host")
	flags.Int("storage.postgres.port", d.Storage.PostgreSQL.Port, "PostgreSQL port")
	flags.String("storage.postgres.database", "", "PostgreSQL database name")
	flags.String("storage.postgres.username", "", "PostgreSQL username")
	flags.String("storage.postgres.password", "", "PostgreSQL password")
	flags.String("storage.postgres.ssl-mode", d.Storage.PostgreSQL.SSLMode, "PostgreSQL SSL mode")
	flags.String("storage.mysql.host", "", "MySQL host")
	flags.Int("storage.mysql.port", d.Storage.MySQL.Port, "MySQL port")
	flags.String("storage.mysql.database", "", "MySQL database name")
	flags.String("storage.mysql.username", "", "MySQL username")
	flags.String("storage.mysql.password", "", "MySQL password")
	flags.Int("storage.pool-size", d.Storage.PoolSize, "Database connection pool size")
	flags.Duration("storage.acquire-timeout", d.Storage.AcquireTimeout, "Timeout acquiring a pooled connection")
	flags.Duration("storage.query-timeout", d.Storage.QueryTimeout, "Timeout applied to each Store call")

	flags.String("queue.type", d.Queue.Type, "Queue backend type (memory, sqs)")
	flags.Duration("queue.wait-message-time", d.Queue.WaitMessageTime, "Long-poll duration for GetMessage")
	flags.Int("queue.memory-capacity", d.Queue.MemoryCapacity, "In-memory queue channel capacity")
	flags.String("queue.sqs.queue-url", "", "SQS queue URL")
	flags.String("queue.sqs.region", "", "SQS region")
	flags.String("queue.sqs.endpoint-url", "", "Custom SQS endpoint URL (e.g. for localstack)")

	flags.Duration("heartbeat.time", d.Heartbeat.Time, "Expected cooperative-scheduler wake interval")

	flags.String("http.bind-address", d.HTTP.BindAddress, "Admin HTTP server bind address")
	flags.String("metrics.bind-address", d.Metrics.BindAddress, "Metrics endpoint bind address")
}

// Load loads configuration from flags, environment, and config file.
// CONFIGS_FILE (spec.md §6) names an explicit config file path; absent
// that, Load searches "." and "/etc/sentinela/" for config.yaml.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("controller.process-schedule", d.Controller.ProcessSchedule)
	v.SetDefault("controller.monitors-load-schedule", d.Controller.MonitorsLoadSchedule)
	v.SetDefault("controller.stuck-monitors-schedule", d.Controller.StuckMonitorsSchedule)
	v.SetDefault("controller.stuck-monitors-tolerance", d.Controller.StuckMonitorsTolerance)
	v.SetDefault("controller.trigger-loop-tolerance", d.Controller.TriggerLoopTolerance)
	v.SetDefault("controller.history-prune-schedule", d.Controller.HistoryPruneSchedule)
	v.SetDefault("controller.history-retention-days", d.Controller.HistoryRetentionDays)
	v.SetDefault("controller.procedure-tick-interval", d.Controller.ProcedureTickInterval)
	v.SetDefault("controller.procedure-tolerance", d.Controller.ProcedureTolerance)
	v.SetDefault("executor.concurrency", d.Executor.Concurrency)
	v.SetDefault("executor.monitor-timeout", d.Executor.MonitorTimeout)
	v.SetDefault("executor.monitor-heartbeat-time", d.Executor.MonitorHeartbeatTime)
	v.SetDefault("executor.reaction-timeout", d.Executor.ReactionTimeout)
	v.SetDefault("executor.request-timeout", d.Executor.RequestTimeout)
	v.SetDefault("executor.max-issues-creation", d.Executor.MaxIssuesCreation)
	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.sqlite.path", d.Storage.SQLite.Path)
	v.SetDefault("storage.postgres.port", d.Storage.PostgreSQL.Port)
	v.SetDefault("storage.postgres.ssl-mode", d.Storage.PostgreSQL.SSLMode)
	v.SetDefault("storage.mysql.port", d.Storage.MySQL.Port)
	v.SetDefault("storage.pool-size", d.Storage.PoolSize)
	v.SetDefault("storage.acquire-timeout", d.Storage.AcquireTimeout)
	v.SetDefault("storage.query-timeout", d.Storage.QueryTimeout)
	v.SetDefault("queue.type", d.Queue.Type)
	v.SetDefault("queue.wait-message-time", d.Queue.WaitMessageTime)
	v.SetDefault("queue.memory-capacity", d.Queue.MemoryCapacity)
	v.SetDefault("heartbeat.time", d.Heartbeat.Time)
	v.SetDefault("http.bind-address", d.HTTP.BindAddress)
	v.SetDefault("metrics.bind-address", d.Metrics.BindAddress)

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	v.SetEnvPrefix("SENTINELA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	var configFileUsed string
	configFile, _ := flags.GetString("config")
	if configFile == "" {
		configFile = os.Getenv("CONFIGS_FILE")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		configFileUsed = v.ConfigFileUsed()
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sentinela")
		if err := v.ReadInConfig(); err == nil {
			configFileUsed = v.ConfigFileUsed()
		}
		// No config file found: defaults and flags/env apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.configFileUsed = configFileUsed

	return cfg, nil
}

// ConfigFileUsed returns the path to the config file that was loaded (empty
// if none).
func (c *Config) ConfigFileUsed() string {
	return c.configFileUsed
}

// DSN builds the GORM DSN string for the configured storage backend.
func (c *Config) DSN() (dialect, dsn string, err error) {
	switch c.Storage.Type {
	case "sqlite":
		return "sqlite", c.Storage.SQLite.Path + "?_journal_mode=WAL&_busy_timeout=5000", nil
	case "postgres":
		p := c.Storage.PostgreSQL
		return "postgres", fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			p.Host, p.Port, p.Username, p.Password, p.Database, p.SSLMode), nil
	case "mysql":
		m := c.Storage.MySQL
		return "mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			m.Username, m.Password, m.Host, m.Port, m.Database), nil
	default:
		return "", "", fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
}
