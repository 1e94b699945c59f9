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

// Package loader validates and registers monitor code (spec.md 4.6). User
// code sandboxing/dynamic loading is explicitly out of scope (spec.md §1);
// this is the reference collaborator the core depends on: monitors are
// compiled into an in-process monitor.Registry at startup, and Loader's job
// is to persist/validate the CodeModule text attached to an already-known
// monitor name, not to execute arbitrary source.
package loader

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentinela-io/sentinela/internal/monitor"
	"github.com/sentinela-io/sentinela/internal/store"
)

// Loader is the contract the Controller and admin API depend on.
type Loader interface {
	// CheckMonitor validates code without registering it.
	CheckMonitor(name, code string) error
	// RegisterMonitor persists/updates the CodeModule for an already
	// compiled-in monitor name and returns its Monitor row.
	RegisterMonitor(ctx context.Context, name, code string, additionalFiles map[string]string) (*store.Monitor, error)
	// Run periodically refreshes the in-process view of which
	// CodeModules have changed (monitors_load_schedule).
	Run(ctx context.Context)
}

// StaticLoader is the reference Loader: it resolves names against a
// compiled-in monitor.Registry and otherwise just tracks CodeModule text in
// the Store for display/audit purposes.
type StaticLoader struct {
	store    store.Store
	registry monitor.Registry
	log      zerolog.Logger
	interval time.Duration

	knownIDs func(ctx context.Context) ([]int64, error)
}

// New creates a StaticLoader. interval is the monitors_load_schedule
// period; knownIDs resolves the universe of monitor IDs to watch for
// CodeModule updates (typically store.ListMonitors, narrowed to IDs).
func New(s store.Store, registry monitor.Registry, log zerolog.Logger, interval time.Duration) *StaticLoader {
	return &StaticLoader{
		store:    s,
		registry: registry,
		log:      log.With().Str("component", "loader").Logger(),
		interval: interval,
		knownIDs: func(ctx context.Context) ([]int64, error) {
			monitors, err := s.ListMonitors(ctx)
			if err != nil {
				return nil, err
			}
			ids := make([]int64, len(monitors))
			for i, m := range monitors {
				ids[i] = m.ID
			}
			return ids, nil
		},
	}
}

func (l *StaticLoader) CheckMonitor(name, code string) error {
	if strings.TrimSpace(name) == "" {
		return &monitor.ValidationError{Name: name, Reasons: []string{"name must not be empty"}}
	}
	if strings.TrimSpace(code) == "" {
		return &monitor.ValidationError{Name: name, Reasons: []string{"code must not be empty"}}
	}
	if _, _, ok := l.registry.Get(name); !ok {
		return &monitor.ValidationError{Name: name, Reasons: []string{"no compiled monitor implementation registered for this name"}}
	}
	return nil
}

// RegisterMonitor validates name/code, creates the Monitor row (search and
// update cron, timezone, serialized option blocks) if none exists yet, and
// upserts its CodeModule. An existing Monitor row is not rewritten: the new
// cron, timezone and option values are set only on the returned Monitor.
func (l *StaticLoader) RegisterMonitor(ctx context.Context, name, code string, additionalFiles map[string]string) (*store.Monitor, error) {
	if err := l.CheckMonitor(name, code); err != nil {
		return nil, err
	}
	_, opts, _ := l.registry.Get(name)

	issueJSON, alertJSON, reactionJSON, err := serializeOptions(opts)
	if err != nil {
		return nil, err
	}

	m, err := l.store.GetMonitorByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = &store.Monitor{
			Name:    name,
			Enabled: true,
		}
	}
	m.SearchCron = opts.Issue.SearchCron
	m.UpdateCron = opts.Issue.UpdateCron
	m.Timezone = opts.Issue.Timezone
	m.IssueOptionsJSON = issueJSON
	m.AlertOptionsJSON = alertJSON
	m.ReactionOptionsJSON = reactionJSON

	if m.ID == 0 {
		if err := l.store.CreateMonitor(ctx, m); err != nil {
			return nil, err
		}
	}

	if err := l.store.UpsertCodeModule(ctx, &store.CodeModule{
		MonitorID:       m.ID,
		Code:            code,
		AdditionalFiles: additionalFiles,
		RegisteredAt:    time.Now(),
	}); err != nil {
		return nil, err
	}

	return m, nil
}

// Run ticks every interval, logging which monitors have had their
// CodeModule updated since the previous tick. Registered monitor code is
// compiled in (no dynamic loading), so this is observational only: an
// operator seeing a drift here knows a binary rebuild/redeploy is needed to
// pick up the new code.
func (l *StaticLoader) Run(ctx context.Context) {
	if l.interval <= 0 {
		return
	}
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	since := time.Now()
	for {
		select {
		case <-ticker.C:
			ids, err := l.knownIDs(ctx)
			if err != nil {
				l.log.Error().Err(err).Msg("failed to list monitors for code module reload check")
				continue
			}
			updated, err := l.store.GetUpdatedCodeModules(ctx, ids, since)
			if err != nil {
				l.log.Error().Err(err).Msg("failed to check for updated code modules")
				continue
			}
			for _, cm := range updated {
				l.log.Warn().Int64("monitor_id", cm.MonitorID).Msg("code module changed since last reload; compiled-in implementation is unaffected until redeploy")
			}
			since = time.Now()
		case <-ctx.Done():
			return
		}
	}
}

type ruleDTO struct {
	Type      string             `json:"type"`
	Levels    map[string]float64 `json:"levels,omitempty"`
	ValueKey  string             `json:"value_key,omitempty"`
	Operation string             `json:"operation,omitempty"`
}

func levelsToStringMap(levels monitor.PriorityLevels) map[string]float64 {
	out := make(map[string]float64, len(levels))
	for level, threshold := range levels {
		out[string(level)] = threshold
	}
	return out
}

func serializeOptions(opts monitor.Options) (issueJSON, alertJSON, reactionJSON string, err error) {
	issueBytes, err := json.Marshal(opts.Issue)
	if err != nil {
		return "", "", "", err
	}

	if opts.Alert != nil {
		dto := ruleDTO{}
		switch r := opts.Alert.Rule.(type) {
		case monitor.AgeRule:
			dto.Type = "age"
			dto.Levels = levelsToStringMap(r.Levels)
		case monitor.CountRule:
			dto.Type = "count"
			dto.Levels = levelsToStringMap(r.Levels)
		case monitor.ValueRule:
			dto.Type = "value"
			dto.Levels = levelsToStringMap(r.Levels)
			dto.ValueKey = r.ValueKey
			dto.Operation = string(r.Operation)
		}
		alertBytes, err := json.Marshal(dto)
		if err != nil {
			return "", "", "", err
		}
		alertJSON = string(alertBytes)
	}

	reactionNames := make(map[string][]string, len(opts.Reaction))
	for event, reactions := range opts.Reaction {
		names := make([]string, len(reactions))
		for i, r := range reactions {
			names[i] = r.Name()
		}
		reactionNames[event] = names
	}
	reactionBytes, err := json.Marshal(reactionNames)
	if err != nil {
		return "", "", "", err
	}

	return string(issueBytes), alertJSON, string(reactionBytes), nil
}
