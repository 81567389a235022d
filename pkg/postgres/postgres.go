package postgres

import (
	"database/sql"
	"fmt"

	"github.com/ds124wfegd/task-reminder/config"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// TaskChangesChannel is the LISTEN/NOTIFY channel fed by the tasks trigger.
const TaskChangesChannel = "task_changes"

func ConnString(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)
}

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.Info("Successfully connected to PostgreSQL")
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		phone VARCHAR(32),
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status VARCHAR(20) NOT NULL DEFAULT 'todo',
		priority VARCHAR(10) NOT NULL DEFAULT 'medium',
		assignee_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
		due_date TIMESTAMPTZ,
		last_reminder_sent TIMESTAMPTZ,
		reminder_count INTEGER NOT NULL DEFAULT 0,
		last_overdue_reminder_sent TIMESTAMPTZ,
		overdue_reminder_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS reminder_settings (
		user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		lead_times BIGINT[] NOT NULL DEFAULT '{1440}',
		before_due BOOLEAN NOT NULL DEFAULT TRUE,
		overdue BOOLEAN NOT NULL DEFAULT TRUE,
		preferred_time VARCHAR(5) NOT NULL DEFAULT '09:00',
		timezone VARCHAR(64) NOT NULL DEFAULT 'Asia/Kolkata',
		updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
	)`,

	// Indexes
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_open_due ON tasks(due_date) WHERE status <> 'completed'`,

	// bookkeeping-only updates do not wake the scheduler up
	`CREATE OR REPLACE FUNCTION notify_task_change() RETURNS trigger AS $$
	BEGIN
		IF TG_OP = 'DELETE' THEN
			PERFORM pg_notify('` + TaskChangesChannel + `', json_build_object('op', TG_OP, 'id', OLD.id)::text);
			RETURN OLD;
		END IF;

		IF TG_OP = 'UPDATE'
			AND NEW.status = OLD.status
			AND NEW.title = OLD.title
			AND NEW.priority = OLD.priority
			AND NEW.due_date IS NOT DISTINCT FROM OLD.due_date
			AND NEW.assignee_id IS NOT DISTINCT FROM OLD.assignee_id THEN
			RETURN NEW;
		END IF;

		PERFORM pg_notify('` + TaskChangesChannel + `', json_build_object('op', TG_OP, 'id', NEW.id)::text);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS tasks_notify_change ON tasks`,
	`CREATE TRIGGER tasks_notify_change
		AFTER INSERT OR UPDATE OR DELETE ON tasks
		FOR EACH ROW EXECUTE FUNCTION notify_task_change()`,
}

func RunMigrations(db *sql.DB) error {
	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	logrus.Info("Database migrations completed successfully")
	return nil
}
