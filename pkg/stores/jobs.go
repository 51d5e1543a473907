package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/beehive-cloud/beehive-resource/pkg/engine"
)

const jobColumns = `id, name, operation, entity_class, objid, resource_id, parent_id, user_name,
	status, delta, stages_done, result, error, created_at, started_at, completed_at`

// CreateJob inserts a new job record
func (s *SQLiteStore) CreateJob(ctx context.Context, job *engine.Job) error {
	query := `INSERT INTO jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.Name,
		job.Operation,
		job.EntityClass,
		job.ObjID,
		job.ResourceID,
		job.ParentID,
		job.User,
		job.Status,
		job.Delta,
		job.StagesDone,
		nullString(string(job.Result)),
		job.Error,
		job.CreatedAt,
		job.StartedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// UpdateJob updates the status, progress and outcome of a job
func (s *SQLiteStore) UpdateJob(ctx context.Context, job *engine.Job) error {
	query := `
		UPDATE jobs
		SET status = ?, delta = ?, stages_done = ?, result = ?, error = ?, started_at = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		job.Status,
		job.Delta,
		job.StagesDone,
		nullString(string(job.Result)),
		job.Error,
		job.StartedAt,
		job.CompletedAt,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return engine.NewNotFoundError(fmt.Sprintf("job not found: %s", job.ID), nil).WithResource(job.ID)
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*engine.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.NewNotFoundError(fmt.Sprintf("job not found: %s", id), nil).WithResource(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs lists jobs matching the filter, newest first
func (s *SQLiteStore) ListJobs(ctx context.Context, filter engine.JobFilter) ([]*engine.Job, error) {
	var conds []string
	var args []any
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Name != "" {
		conds = append(conds, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.ParentID != "" {
		conds = append(conds, "parent_id = ?")
		args = append(args, filter.ParentID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	query := `SELECT ` + jobColumns + ` FROM jobs` + where(conds) + ` ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*engine.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row scanner) (*engine.Job, error) {
	job := &engine.Job{}
	var result sql.NullString
	err := row.Scan(
		&job.ID,
		&job.Name,
		&job.Operation,
		&job.EntityClass,
		&job.ObjID,
		&job.ResourceID,
		&job.ParentID,
		&job.User,
		&job.Status,
		&job.Delta,
		&job.StagesDone,
		&result,
		&job.Error,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if result.Valid {
		job.Result = []byte(result.String)
	}
	return job, nil
}

// SaveTask inserts or updates a task execution record
func (s *SQLiteStore) SaveTask(ctx context.Context, task *engine.JobTask) error {
	query := `
		INSERT INTO job_tasks (id, job_id, name, stage, status, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.JobID,
		task.Name,
		task.Stage,
		task.Status,
		task.Error,
		task.StartedAt,
		task.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// ListTasks lists the task executions of a job in stage order
func (s *SQLiteStore) ListTasks(ctx context.Context, jobID string) ([]*engine.JobTask, error) {
	query := `
		SELECT id, job_id, name, stage, status, error, started_at, completed_at
		FROM job_tasks
		WHERE job_id = ?
		ORDER BY stage, started_at, rowid
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*engine.JobTask{}
	for rows.Next() {
		task := &engine.JobTask{}
		err := rows.Scan(
			&task.ID,
			&task.JobID,
			&task.Name,
			&task.Stage,
			&task.Status,
			&task.Error,
			&task.StartedAt,
			&task.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// AppendEvent appends an entry to a job's progress trail
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *engine.JobEvent) error {
	query := `
		INSERT INTO job_events (job_id, task_id, status, level, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		event.JobID,
		event.TaskID,
		event.Status,
		event.Level,
		event.Message,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	// Get the auto-generated ID
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get event ID: %w", err)
	}

	event.ID = id
	return nil
}

// ListEvents returns the progress trail of a job in insertion order
func (s *SQLiteStore) ListEvents(ctx context.Context, jobID string) ([]*engine.JobEvent, error) {
	query := `
		SELECT id, job_id, task_id, status, level, message, timestamp
		FROM job_events
		WHERE job_id = ?
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*engine.JobEvent{}
	for rows.Next() {
		event := &engine.JobEvent{}
		err := rows.Scan(
			&event.ID,
			&event.JobID,
			&event.TaskID,
			&event.Status,
			&event.Level,
			&event.Message,
			&event.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// DeleteJob deletes a job with its tasks and events
func (s *SQLiteStore) DeleteJob(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return engine.NewNotFoundError(fmt.Sprintf("job not found: %s", id), nil).WithResource(id)
	}
	return nil
}
