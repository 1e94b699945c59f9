package store

import "time"

// monitorRow is the GORM model backing Monitor.
type monitorRow struct {
	ID                  int64      `gorm:"primaryKey;autoIncrement"`
	Name                string     `gorm:"column:name;size:255;not null;uniqueIndex"`
	Enabled             bool       `gorm:"column:enabled;not null;default:true"`
	Queued              bool       `gorm:"column:queued;not null;default:false;index:idx_monitor_queued"`
	Running             bool       `gorm:"column:running;not null;default:false;index:idx_monitor_running"`
	QueuedAt            *time.Time `gorm:"column:queued_at"`
	RunningAt           *time.Time `gorm:"column:running_at"`
	SearchExecutedAt    *time.Time `gorm:"column:search_executed_at"`
	UpdateExecutedAt    *time.Time `gorm:"column:update_executed_at"`
	LastHeartbeat       *time.Time `gorm:"column:last_heartbeat"`
	SearchCron          string     `gorm:"column:search_cron;size:128"`
	UpdateCron          string     `gorm:"column:update_cron;size:128"`
	Timezone            string     `gorm:"column:timezone;size:64"`
	IssueOptionsJSON    string     `gorm:"column:issue_options;type:text"`
	AlertOptionsJSON    string     `gorm:"column:alert_options;type:text"`
	ReactionOptionsJSON string     `gorm:"column:reaction_options;type:text"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (*monitorRow) TableName() string { return "monitors" }

// codeModuleRow is the GORM model backing CodeModule.
type codeModuleRow struct {
	MonitorID       int64     `gorm:"column:monitor_id;primaryKey"`
	Code            string    `gorm:"column:code;type:text;not null"`
	AdditionalFiles string    `gorm:"column:additional_files;type:text"` // JSON-encoded map[string]string
	RegisteredAt    time.Time `gorm:"column:registered_at;not null"`
}

func (*codeModuleRow) TableName() string { return "code_modules" }

// issueRow is the GORM model backing Issue.
type issueRow struct {
	ID        int64      `gorm:"primaryKey;autoIncrement"`
	MonitorID int64      `gorm:"column:monitor_id;not null;index:idx_issue_monitor_status,priority:1;index:idx_issue_monitor_model,priority:1"`
	AlertID   *int64     `gorm:"column:alert_id;index"`
	ModelID   string     `gorm:"column:model_id;size:255;not null;index:idx_issue_monitor_model,priority:2"`
	Status    string     `gorm:"column:status;size:20;not null;index:idx_issue_monitor_status,priority:2"`
	Data      string     `gorm:"column:data;type:text"` // JSON-encoded map[string]any
	CreatedAt time.Time  `gorm:"column:created_at;not null"`
	SolvedAt  *time.Time `gorm:"column:solved_at"`
	DroppedAt *time.Time `gorm:"column:dropped_at"`
}

func (*issueRow) TableName() string { return "issues" }

// alertRow is the GORM model backing Alert.
type alertRow struct {
	ID                  int64      `gorm:"primaryKey;autoIncrement"`
	MonitorID           int64      `gorm:"column:monitor_id;not null;index:idx_alert_monitor_status,priority:1"`
	Status              string     `gorm:"column:status;size:20;not null;index:idx_alert_monitor_status,priority:2"`
	Acknowledged        bool       `gorm:"column:acknowledged;not null;default:false"`
	Locked              bool       `gorm:"column:locked;not null;default:false"`
	Priority            string     `gorm:"column:priority;size:20"`
	AcknowledgePriority string     `gorm:"column:acknowledge_priority;size:20"`
	CreatedAt           time.Time  `gorm:"column:created_at;not null"`
	SolvedAt            *time.Time `gorm:"column:solved_at"`
}

func (*alertRow) TableName() string { return "alerts" }

// notificationRow is the GORM model backing Notification.
type notificationRow struct {
	ID        int64      `gorm:"primaryKey;autoIncrement"`
	AlertID   int64      `gorm:"column:alert_id;not null;uniqueIndex:idx_notification_target,priority:1"`
	Target    string     `gorm:"column:target;size:255;not null;uniqueIndex:idx_notification_target,priority:2"`
	Status    string     `gorm:"column:status;size:20;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;not null"`
	ClosedAt  *time.Time `gorm:"column:closed_at"`
}

func (*notificationRow) TableName() string { return "notifications" }

// variableRow is the GORM model backing Variable.
type variableRow struct {
	MonitorID int64     `gorm:"column:monitor_id;primaryKey;uniqueIndex:idx_variable_name,priority:1"`
	Name      string    `gorm:"column:name;size:255;primaryKey;uniqueIndex:idx_variable_name,priority:2"`
	Value     string    `gorm:"column:value;type:text"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (*variableRow) TableName() string { return "variables" }

// monitorExecutionRow is the GORM model backing MonitorExecution.
type monitorExecutionRow struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	MonitorID  int64     `gorm:"column:monitor_id;not null;index"`
	Task       string    `gorm:"column:task;size:20;not null"`
	Status     string    `gorm:"column:status;size:20;not null"`
	ErrorType  string    `gorm:"column:error_type;size:255"`
	StartedAt  time.Time `gorm:"column:started_at;not null"`
	FinishedAt time.Time `gorm:"column:finished_at;not null"`
}

func (*monitorExecutionRow) TableName() string { return "monitor_executions" }

// eventRow is the GORM model backing Event.
type eventRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	EventType string    `gorm:"column:event_type;size:100;not null;uniqueIndex:idx_event_key,priority:1"`
	Model     string    `gorm:"column:model;size:50;not null;uniqueIndex:idx_event_key,priority:2"`
	ModelID   int64     `gorm:"column:model_id;not null;uniqueIndex:idx_event_key,priority:3"`
	Payload   string    `gorm:"column:payload;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (*eventRow) TableName() string { return "events" }
