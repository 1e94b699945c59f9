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

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite" // Pure Go SQLite driver (no CGO required)
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore implements Store using GORM across SQLite, PostgreSQL and MySQL.
type GormStore struct {
	db      *gorm.DB
	dialect string

	// acquireTimeout and queryTimeout are database_default_acquire_timeout
	// and database_default_query_timeout (spec.md 5): every Store call is
	// bounded by their sum via withQueryDeadline, since GORM's simple query
	// API gives no separate hook for "time spent waiting on the pool" vs
	// "time spent executing" — the combined budget is applied as a single
	// context deadline per call.
	acquireTimeout time.Duration
	queryTimeout   time.Duration
}

// ConnectionPoolConfig holds connection pool settings (spec.md 5:
// application_database_settings.pool_size and friends) plus the per-call
// timeout budget applied by withQueryDeadline.
type ConnectionPoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// AcquireTimeout is database_default_acquire_timeout.
	AcquireTimeout time.Duration

	// QueryTimeout is database_default_query_timeout.
	QueryTimeout time.Duration
}

// NewGormStore creates a new GORM-based store.
func NewGormStore(dialect, dsn string) (*GormStore, error) {
	return NewGormStoreWithPool(dialect, dsn, ConnectionPoolConfig{})
}

// NewGormStoreWithPool creates a new GORM-based store with connection pool settings.
func NewGormStoreWithPool(dialect, dsn string, pool ConnectionPoolConfig) (*GormStore, error) {
	var dialector gorm.Dialector
	switch dialect {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect != "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB for pool config: %w", err)
		}
		if pool.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
		}
		if pool.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
		}
		if pool.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
		}
		if pool.ConnMaxIdleTime > 0 {
			sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
		}
	}

	return &GormStore{
		db:             db,
		dialect:        dialect,
		acquireTimeout: pool.AcquireTimeout,
		queryTimeout:   pool.QueryTimeout,
	}, nil
}

// withQueryDeadline bounds ctx by the acquire+query timeout budget (spec.md
// 5: "acquires with database_default_acquire_timeout and executes with
// database_default_query_timeout"). GORM's query API gives no separate hook
// for time spent waiting on the pool versus time spent executing, so the
// combined budget is applied as a single deadline per Store call; every
// exported method other than Init and Close calls this first and defers the
// returned cancel.
func (s *GormStore) withQueryDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	budget := s.acquireTimeout + s.queryTimeout
	if budget <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, budget)
}

// Init initializes the store (creates tables via auto-migration).
func (s *GormStore) Init() error {
	return s.db.AutoMigrate(
		&monitorRow{}, &codeModuleRow{}, &issueRow{}, &alertRow{},
		&notificationRow{}, &variableRow{}, &monitorExecutionRow{}, &eventRow{},
	)
}

// Close closes the store and releases resources.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks if the store is healthy.
func (s *GormStore) Health(ctx context.Context) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ---- Monitors ----------------------------------------------------------

func monitorFromRow(r *monitorRow) *Monitor {
	return &Monitor{
		ID:                  r.ID,
		Name:                r.Name,
		Enabled:             r.Enabled,
		Queued:              r.Queued,
		Running:             r.Running,
		QueuedAt:            r.QueuedAt,
		RunningAt:           r.RunningAt,
		SearchExecutedAt:    r.SearchExecutedAt,
		UpdateExecutedAt:    r.UpdateExecutedAt,
		LastHeartbeat:       r.LastHeartbeat,
		SearchCron:          r.SearchCron,
		UpdateCron:          r.UpdateCron,
		Timezone:            r.Timezone,
		IssueOptionsJSON:    r.IssueOptionsJSON,
		AlertOptionsJSON:    r.AlertOptionsJSON,
		ReactionOptionsJSON: r.ReactionOptionsJSON,
		CreatedAt:           r.CreatedAt,
	}
}

func (s *GormStore) CreateMonitor(ctx context.Context, m *Monitor) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	row := &monitorRow{
		Name:                m.Name,
		Enabled:             m.Enabled,
		SearchCron:          m.SearchCron,
		UpdateCron:          m.UpdateCron,
		Timezone:            m.Timezone,
		IssueOptionsJSON:    m.IssueOptionsJSON,
		AlertOptionsJSON:    m.AlertOptionsJSON,
		ReactionOptionsJSON: m.ReactionOptionsJSON,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	m.ID = row.ID
	m.CreatedAt = row.CreatedAt
	return nil
}

func (s *GormStore) GetMonitor(ctx context.Context, id int64) (*Monitor, error) {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	var row monitorRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return monitorFromRow(&row), nil
}

func (s *GormStore) GetMonitorByName(ctx context.Context, name string) (*Monitor, error) {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	var row monitorRow
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return monitorFromRow(&row), nil
}

func (s *GormStore) ListMonitors(ctx context.Context) ([]Monitor, error) {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	var rows []monitorRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Monitor, len(rows))
	for i := range rows {
		out[i] = *monitorFromRow(&rows[i])
	}
	return out, nil
}

func (s *GormStore) ListEnabledMonitors(ctx context.Context) ([]Monitor, error) {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	var rows []monitorRow
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Monitor, len(rows))
	for i := range rows {
		out[i] = *monitorFromRow(&rows[i])
	}
	return out, nil
}

func (s *GormStore) SetMonitorEnabled(ctx context.Context, id int64, enabled bool) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Model(&monitorRow{}).Where("id = ?", id).
		Update("enabled", enabled).Error
}

func (s *GormStore) SetMonitorQueued(ctx context.Context, id int64, queued bool, at *time.Time) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Model(&monitorRow{}).Where("id = ?", id).
		Updates(map[string]any{"queued": queued, "queued_at": at}).Error
}

func (s *GormStore) SetMonitorRunning(ctx context.Context, id int64, running bool, at *time.Time) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Model(&monitorRow{}).Where("id = ?", id).
		Updates(map[string]any{"running": running, "running_at": at}).Error
}

func (s *GormStore) SetMonitorHeartbeat(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Model(&monitorRow{}).Where("id = ?", id).
		Update("last_heartbeat", at).Error
}

func (s *GormStore) SetMonitorExecutedAt(ctx context.Context, id int64, task string, at time.Time) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	col := "search_executed_at"
	if task == TaskUpdate {
		col = "update_executed_at"
	}
	return s.db.WithContext(ctx).Model(&monitorRow{}).Where("id = ?", id).
		Update(col, at).Error
}

// ClearStuckMonitors clears queued/running on monitors whose queued_at or
// running_at predate cutoff, and returns the monitors that were rescued.
func (s *GormStore) ClearStuckMonitors(ctx context.Context, cutoff time.Time) ([]StuckMonitor, error) {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	var rows []monitorRow
	err := s.db.WithContext(ctx).
		Where("(queued = ? AND queued_at < ?) OR (running = ? AND running_at < ?)",
			true, cutoff, true, cutoff).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(rows))
	out := make([]StuckMonitor, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
		out[i] = StuckMonitor{ID: r.ID, Name: r.Name}
	}

	err = s.db.WithContext(ctx).Model(&monitorRow{}).Where("id IN ?", ids).
		Updates(map[string]any{"queued": false, "running": false}).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ---- Code modules -------------------------------------------------------

func (s *GormStore) UpsertCodeModule(ctx context.Context, cm *CodeModule) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	files, err := json.Marshal(cm.AdditionalFiles)
	if err != nil {
		return fmt.Errorf("encoding additional files: %w", err)
	}
	row := &codeModuleRow{
		MonitorID:       cm.MonitorID,
		Code:            cm.Code,
		AdditionalFiles: string(files),
		RegisteredAt:    cm.RegisteredAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "monitor_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "additional_files", "registered_at"}),
	}).Create(row).Error
}

func (s *GormStore) GetCodeModule(ctx context.Context, monitorID int64) (*CodeModule, error) {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	var row codeModuleRow
	err := s.db.WithContext(ctx).Where("monitor_id = ?", monitorID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return codeModuleFromRow(&row)
}

func (s *GormStore) GetUpdatedCodeModules(ctx context.Context, monitorIDs []int64, since time.Time) ([]CodeModule, error) {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	var rows []codeModuleRow
	q := s.db.WithContext(ctx).Where("registered_at > ?", since)
	if len(monitorIDs) > 0 {
		q = q.Where("monitor_id IN ?", monitorIDs)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]CodeModule, 0, len(rows))
	for i := range rows {
		cm, err := codeModuleFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *cm)
	}
	return out, nil
}

func codeModuleFromRow(row *codeModuleRow) (*CodeModule, error) {
	files := map[string]string{}
	if row.AdditionalFiles != "" {
		if err := json.Unmarshal([]byte(row.AdditionalFiles), &files); err != nil {
			return nil, fmt.Errorf("decoding additional files: %w", err)
		}
	}
	return &CodeModule{
		MonitorID:       row.MonitorID,
		Code:            row.Code,
		AdditionalFiles: files,
		RegisteredAt:    row.RegisteredAt,
	}, nil
}

// ---- Issues --------------------------------------------------------------

func issueFromRow(row *issueRow) (*Issue, error) {
	data := map[string]any{}
	if row.Data != "" {
		if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
			return nil, fmt.Errorf("decoding issue data: %w", err)
		}
	}
	return &Issue{
		ID:        row.ID,
		MonitorID: row.MonitorID,
		AlertID:   row.AlertID,
		ModelID:   row.ModelID,
		Status:    row.Status,
		Data:      data,
		CreatedAt: row.CreatedAt,
		SolvedAt:  row.SolvedAt,
		DroppedAt: row.DroppedAt,
	}, nil
}

func (s *GormStore) CreateIssue(ctx context.Context, issue *Issue) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	data, err := json.Marshal(issue.Data)
	if err != nil {
		return fmt.Errorf("encoding issue data: %w", err)
	}
	row := &issueRow{
		MonitorID: issue.MonitorID,
		AlertID:   issue.AlertID,
		ModelID:   issue.ModelID,
		Status:    issue.Status,
		Data:      string(data),
		CreatedAt: issue.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	issue.ID = row.ID
	return nil
}

func (s *GormStore) GetIssue(ctx context.Context, id int64) (*Issue, error) {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	var row issueRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return issueFromRow(&row)
}

func (s *GormStore) GetActiveIssues(ctx context.Context, monitorID int64) ([]Issue, error) {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	var rows []issueRow
	err := s.db.WithContext(ctx).
		Where("monitor_id = ? AND status = ?", monitorID, IssueStatusActive).
		Order("created_at").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Issue, 0, len(rows))
	for i := range rows {
		issue, err := issueFromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *issue)
	}
	return out, nil
}

func (s *GormStore) UpdateIssueData(ctx context.Context, id int64, data map[string]any) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding issue data: %w", err)
	}
	return s.db.WithContext(ctx).Model(&issueRow{}).Where("id = ?", id).
		Update("data", string(encoded)).Error
}

func (s *GormStore) SolveIssue(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Model(&issueRow{}).Where("id = ?", id).
		Updates(map[string]any{"status": IssueStatusSolved, "solved_at": at}).Error
}

func (s *GormStore) DropIssue(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Model(&issueRow{}).Where("id = ?", id).
		Updates(map[string]any{"status": IssueStatusDropped, "dropped_at": at}).Error
}

func (s *GormStore) LinkIssuesToAlert(ctx context.Context, issueIDs []int64, alertID int64) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	if len(issueIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&issueRow{}).Where("id IN ?", issueIDs).
		Update("alert_id", alertID).Error
}

// ---- Alerts ----------------------------------------------------------

func alertFromRow(row *alertRow) *Alert {
	return &Alert{
		ID:                  row.ID,
		MonitorID:           row.MonitorID,
		Status:              row.Status,
		Acknowledged:        row.Acknowledged,
		Locked:              row.Locked,
		Priority:            row.Priority,
		AcknowledgePriority: row.AcknowledgePriority,
		CreatedAt:           row.CreatedAt,
		SolvedAt:            row.SolvedAt,
	}
}

func (s *GormStore) CreateAlert(ctx context.Context, alert *Alert) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	row := &alertRow{
		MonitorID:    alert.MonitorID,
		Status:       alert.Status,
		Acknowledged: alert.Acknowledged,
		Locked:       alert.Locked,
		Priority:     alert.Priority,
		CreatedAt:    alert.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	alert.ID = row.ID
	return nil
}

func (s *GormStore) GetAlert(ctx context.Context, id int64) (*Alert, error) {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	var row alertRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return alertFromRow(&row), nil
}

func (s *GormStore) GetActiveAlert(ctx context.Context, monitorID int64) (*Alert, error) {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	var row alertRow
	err := s.db.WithContext(ctx).
		Where("monitor_id = ? AND status = ?", monitorID, AlertStatusActive).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return alertFromRow(&row), nil
}

func (s *GormStore) UpdateAlertPriority(ctx context.Context, id int64, priority string) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Model(&alertRow{}).Where("id = ?", id).
		Update("priority", priority).Error
}

func (s *GormStore) UpdateAlertPriorityAndClearAcknowledgement(ctx context.Context, id int64, priority string) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Model(&alertRow{}).Where("id = ?", id).
		Updates(map[string]any{"priority": priority, "acknowledged": false}).Error
}

func (s *GormStore) AcknowledgeAlert(ctx context.Context, id int64, priority string) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Model(&alertRow{}).Where("id = ?", id).
		Updates(map[string]any{"acknowledged": true, "acknowledge_priority": priority}).Error
}

func (s *GormStore) LockAlert(ctx context.Context, id int64) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Model(&alertRow{}).Where("id = ?", id).
		Update("locked", true).Error
}

func (s *GormStore) SolveAlert(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Model(&alertRow{}).Where("id = ?", id).
		Updates(map[string]any{"status": AlertStatusSolved, "solved_at": at}).Error
}

// ---- Notifications -------------------------------------------------------

func (s *GormStore) CreateNotification(ctx context.Context, n *Notification) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	row := &notificationRow{
		AlertID:   n.AlertID,
		Target:    n.Target,
		Status:    n.Status,
		CreatedAt: n.CreatedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	if err != nil {
		return err
	}
	n.ID = row.ID
	return nil
}

func (s *GormStore) CloseNotificationsForAlert(ctx context.Context, alertID int64, at time.Time) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Model(&notificationRow{}).
		Where("alert_id = ? AND status = ?", alertID, NotificationStatusActive).
		Updates(map[string]any{"status": NotificationStatusClosed, "closed_at": at}).Error
}

// ---- Variables ----------------------------------------------------------

func (s *GormStore) GetVariable(ctx context.Context, monitorID int64, name string) (string, bool, error) {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	var row variableRow
	err := s.db.WithContext(ctx).
		Where("monitor_id = ? AND name = ?", monitorID, name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (s *GormStore) SetVariable(ctx context.Context, monitorID int64, name, value string) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	row := &variableRow{
		MonitorID: monitorID,
		Name:      name,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "monitor_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(row).Error
}

// ---- Monitor executions ---------------------------------------------------

func (s *GormStore) RecordExecution(ctx context.Context, e *MonitorExecution) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	row := &monitorExecutionRow{
		MonitorID:  e.MonitorID,
		Task:       e.Task,
		Status:     e.Status,
		ErrorType:  e.ErrorType,
		StartedAt:  e.StartedAt,
		FinishedAt: e.FinishedAt,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	e.ID = row.ID
	return nil
}

// ---- Events --------------------------------------------------------------

func (s *GormStore) EmitEvent(ctx context.Context, e *Event) (bool, error) {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return false, fmt.Errorf("encoding event payload: %w", err)
	}
	row := &eventRow{
		EventType: e.EventType,
		Model:     e.Model,
		ModelID:   e.ModelID,
		Payload:   string(payload),
		CreatedAt: e.CreatedAt,
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if tx.Error != nil {
		return false, tx.Error
	}
	if tx.RowsAffected == 0 {
		return false, nil
	}
	e.ID = row.ID
	return true, nil
}

// ---- Procedures escape hatch -----------------------------------------------

func (s *GormStore) ExecuteApplication(ctx context.Context, sql string, args ...any) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Exec(sql, args...).Error
}

func (s *GormStore) QueryApplication(ctx context.Context, dest any, sql string, args ...any) error {
	ctx, cancel := s.withQueryDeadline(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Raw(sql, args...).Scan(dest).Error
}
