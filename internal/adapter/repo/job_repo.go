package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"videokit/internal/domain"
	"videokit/internal/infra"
	"videokit/internal/sqlinline"
)

// JobRepositorySQLite implements domain.JobRepository. Each job is stored as one JSON document
// keyed by id, with status and update time lifted into columns for ordering.
type JobRepositorySQLite struct {
	db infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by SQLite.
func NewJobRepository(db infra.SQLExecutor) *JobRepositorySQLite {
	return &JobRepositorySQLite{db: db}
}

// GetAll returns every stored job, most recently updated first.
func (r *JobRepositorySQLite) GetAll(ctx context.Context) ([]*domain.Job, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListJobs)
	if err != nil {
		return nil, storeErr("list jobs", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, storeErr("scan job", err)
		}
		var job domain.Job
		if err := json.Unmarshal([]byte(doc), &job); err != nil {
			return nil, storeErr("decode job", err)
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list jobs", err)
	}
	return jobs, nil
}

// Put inserts or replaces the job record.
func (r *JobRepositorySQLite) Put(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return fmt.Errorf("%w: nil job", domain.ErrValidation)
	}
	doc, err := json.Marshal(job)
	if err != nil {
		return storeErr("encode job", err)
	}
	if _, err := r.db.Exec(ctx, sqlinline.QUpsertJob, job.ID, string(job.Status), formatTime(job.LastActivity()), string(doc)); err != nil {
		return storeErr("put job", err)
	}
	return nil
}

// Delete removes the job. Missing ids are not an error.
func (r *JobRepositorySQLite) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, sqlinline.QDeleteJob, id); err != nil {
		return storeErr("delete job", err)
	}
	return nil
}

// Clear removes every job in one statement.
func (r *JobRepositorySQLite) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, sqlinline.QClearJobs); err != nil {
		return storeErr("clear jobs", err)
	}
	return nil
}

var _ domain.JobRepository = (*JobRepositorySQLite)(nil)
