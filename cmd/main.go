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

// Command sentinela is the CLI entrypoint for both Sentinela roles (spec.md
// §6): `sentinela [controller] [executor]`. Zero args enables both roles
// co-resident in one process, sharing the Store, Queue and TaskManager.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/sentinela-io/sentinela/internal/api"
	"github.com/sentinela-io/sentinela/internal/config"
	"github.com/sentinela-io/sentinela/internal/controller"
	"github.com/sentinela-io/sentinela/internal/cronutil"
	"github.com/sentinela-io/sentinela/internal/executor"
	"github.com/sentinela-io/sentinela/internal/heartbeat"
	"github.com/sentinela-io/sentinela/internal/loader"
	"github.com/sentinela-io/sentinela/internal/metrics"
	"github.com/sentinela-io/sentinela/internal/monitor"
	"github.com/sentinela-io/sentinela/internal/procedure"
	"github.com/sentinela-io/sentinela/internal/queue"
	"github.com/sentinela-io/sentinela/internal/store"
	"github.com/sentinela-io/sentinela/internal/taskmanager"
)

func main() {
	flags := pflag.NewFlagSet("sentinela", pflag.ExitOnError)
	config.BindFlags(flags)
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "failed to parse flags:", err)
		os.Exit(1)
	}

	roles := rolesFromArgs(flags.Args())

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()

	if cfg.ConfigFileUsed() != "" {
		log.Info().Str("file", cfg.ConfigFileUsed()).Str("level", cfg.LogLevel).Msg("configuration loaded")
	} else {
		log.Info().Str("level", cfg.LogLevel).Msg("no config file found, using defaults and flags/env")
	}

	if err := run(cfg, roles, log); err != nil {
		log.Error().Err(err).Msg("fatal error")
		os.Exit(1)
	}
}

// role names accepted as positional CLI arguments.
const (
	roleController = "controller"
	roleExecutor   = "executor"
)

// rolesFromArgs implements spec.md §6's "sentinela [controller] [executor]":
// zero args enables both roles.
func rolesFromArgs(args []string) map[string]bool {
	if len(args) == 0 {
		return map[string]bool{roleController: true, roleExecutor: true}
	}
	roles := make(map[string]bool, len(args))
	for _, a := range args {
		roles[a] = true
	}
	return roles
}

func run(cfg *config.Config, roles map[string]bool, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeCfg := store.Config{
		Type:             cfg.Storage.Type,
		SQLitePath:       cfg.Storage.SQLite.Path,
		PoolMaxIdleConns: cfg.Storage.PoolSize,
		PoolMaxOpenConns: cfg.Storage.PoolSize,
		AcquireTimeout:   cfg.Storage.AcquireTimeout,
		QueryTimeout:     cfg.Storage.QueryTimeout,
	}
	if cfg.Storage.Type == "postgres" || cfg.Storage.Type == "mysql" {
		_, dsn, err := cfg.DSN()
		if err != nil {
			return fmt.Errorf("resolving storage dsn: %w", err)
		}
		storeCfg.DSN = dsn
	}
	s, err := store.New(storeCfg)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer func() { _ = s.Close() }()
	log.Info().Str("type", cfg.Storage.Type).Msg("store initialized")

	q, err := newQueue(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initializing queue: %w", err)
	}
	if err := q.Init(ctx); err != nil {
		return fmt.Errorf("bringing up queue: %w", err)
	}
	log.Info().Str("type", cfg.Queue.Type).Msg("queue initialized")

	// Monitor implementations are compiled in by whichever binary imports
	// this package's collaborators (spec.md §1: user-code sandboxing is out
	// of scope). This reference entrypoint creates the registry here and
	// registers no monitors on it.
	registry := monitor.NewStaticRegistry()

	metricsRegistry := metrics.New()

	tm := taskmanager.New(log, 10*time.Second)
	go tm.Run(ctx)

	hb := heartbeat.New(cfg.Heartbeat.Time, log, metricsRegistry)
	go hb.Run(ctx)

	var ctrlRole *controller.Controller
	var execRole *executor.Executor

	if roles[roleExecutor] {
		execRole = executor.New(s, q, registry, tm, metricsRegistry, executor.Config{
			Concurrency:          cfg.Executor.Concurrency,
			MonitorTimeout:       cfg.Executor.MonitorTimeout,
			MonitorHeartbeatTime: cfg.Executor.MonitorHeartbeatTime,
			ReactionTimeout:      cfg.Executor.ReactionTimeout,
			RequestTimeout:       cfg.Executor.RequestTimeout,
			MaxIssuesCreation:    cfg.Executor.MaxIssuesCreation,
		}, log)
		go execRole.Run(ctx)
		log.Info().Int("concurrency", cfg.Executor.Concurrency).Msg("executor role started")
	}

	if roles[roleController] {
		procedures := procedure.NewRunner(log, cfg.Controller.ProcedureTickInterval,
			procedure.Scheduled{
				Procedure: procedure.NewMonitorsStuck(s, cfg.Controller.StuckMonitorsTolerance, log),
				CronExpr:  cfg.Controller.StuckMonitorsSchedule,
				Timezone:  "UTC",
				Tolerance: cfg.Controller.ProcedureTolerance,
			},
			procedure.Scheduled{
				Procedure: procedure.NewHistoryPruner(s, cfg.Controller.HistoryRetentionDays, log),
				CronExpr:  cfg.Controller.HistoryPruneSchedule,
				Timezone:  "UTC",
				Tolerance: cfg.Controller.ProcedureTolerance,
			},
		)

		ctrlRole = controller.New(s, q, procedures, cfg.Controller.ProcessSchedule, cfg.Controller.TriggerLoopTolerance, log)
		go ctrlRole.Run(ctx)
		log.Info().Str("schedule", cfg.Controller.ProcessSchedule).Msg("controller role started")

		l := loader.New(s, registry, log, loadInterval(cfg.Controller.MonitorsLoadSchedule))
		go l.Run(ctx)

		var controllerStatus api.ControllerStatus = ctrlRole
		var executorStatus api.ExecutorStatus
		if execRole != nil {
			executorStatus = execRole
		}

		srv := api.NewServer(cfg.HTTP.BindAddress, s, l, registry, q, controllerStatus, executorStatus, metricsRegistry, log)
		srvErrCh := make(chan error, 1)
		go func() { srvErrCh <- srv.Run(ctx) }()

		<-ctx.Done()
		log.Info().Msg("shutdown signal received")
		if err := <-srvErrCh; err != nil {
			log.Error().Err(err).Msg("admin API server did not shut down cleanly")
		}
	} else {
		<-ctx.Done()
		log.Info().Msg("shutdown signal received")
	}

	return nil
}

// loadInterval derives the monitors_load_schedule polling interval the
// reference loader.Run uses: a fixed duration rather than a cron, since the
// schedule itself is only used to derive a tick cadence here (cron-accurate
// triggering is cronutil's job elsewhere; the loader's drift check is
// observational, spec.md 4.6).
func loadInterval(cronExpr string) time.Duration {
	d, err := cronutil.TimeUntilNextTrigger(cronExpr, "UTC", time.Now())
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

func newQueue(ctx context.Context, cfg *config.Config, log zerolog.Logger) (queue.Queue, error) {
	switch cfg.Queue.Type {
	case "sqs":
		return queue.NewSQSQueue(ctx, cfg.Queue.SQS.QueueURL, cfg.Queue.WaitMessageTime, queue.SQSCredentials{
			Region:      cfg.Queue.SQS.Region,
			EndpointURL: cfg.Queue.SQS.EndpointURL,
		}, log)
	case "memory", "":
		return queue.NewMemoryQueue(cfg.Queue.WaitMessageTime, cfg.Queue.MemoryCapacity), nil
	default:
		return nil, fmt.Errorf("unknown queue type: %s", cfg.Queue.Type)
	}
}
