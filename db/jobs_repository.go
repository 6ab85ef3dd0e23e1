package db

import (
	"database/sql"
	"fmt"
	"time"
)

// EnqueueJob inserts an available job on the given queue, scheduled to
// run immediately. Used at message creation.
func EnqueueJob(queue, messageID string, maxAttempts int) (*Job, error) {
	now := time.Now().UTC()
	var id int64
	err := DB.QueryRow(
		`INSERT INTO jobs (queue, message_id, attempt, max_attempts, state, scheduled_at, inserted_at, updated_at)
		 VALUES ($1, $2, 0, $3, $4, $5, $6, $7) RETURNING id`,
		queue, messageID, maxAttempts, JobAvailable, now, now, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return &Job{ID: id, Queue: queue, MessageID: messageID, MaxAttempts: maxAttempts, State: JobAvailable, ScheduledAt: now}, nil
}

// ClaimNextJob atomically claims the oldest available/scheduled job
// whose scheduledAt has elapsed, on the given queue, moving it to
// executing. Returns nil, nil if nothing is claimable. The update's
// WHERE clause guards against two workers claiming the same row.
func ClaimNextJob(queue string) (*Job, error) {
	tx, err := DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(
		`SELECT id, queue, message_id, attempt, max_attempts, state, scheduled_at, last_error, inserted_at, updated_at
		 FROM jobs
		 WHERE queue = $1 AND state IN ($2, $3) AND scheduled_at <= $4
		 ORDER BY scheduled_at ASC
		 LIMIT 1`,
		queue, JobAvailable, JobScheduled, time.Now().UTC(),
	)

	job := &Job{}
	err = row.Scan(&job.ID, &job.Queue, &job.MessageID, &job.Attempt, &job.MaxAttempts, &job.State, &job.ScheduledAt, &job.LastError, &job.InsertedAt, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select claimable job: %w", err)
	}

	res, err := tx.Exec(
		`UPDATE jobs SET state = $1, updated_at = $2 WHERE id = $3 AND state IN ($4, $5)`,
		JobExecuting, time.Now().UTC(), job.ID, JobAvailable, JobScheduled,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected claiming job: %w", err)
	}
	if n == 0 {
		// Lost the race to another worker between SELECT and UPDATE.
		return nil, tx.Commit()
	}
	job.State = JobExecuting

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", err)
	}
	return job, nil
}

// CompleteJob marks a job completed after a successful send.
func CompleteJob(id int64) error {
	_, err := DB.Exec(`UPDATE jobs SET state = $1, updated_at = $2 WHERE id = $3`, JobCompleted, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// CancelJob marks a job cancelled with a reason — used for "not found"
// and "not actionable" outcomes, and for non-retryable modem
// application errors.
func CancelJob(id int64, reason string) error {
	_, err := DB.Exec(`UPDATE jobs SET state = $1, last_error = $2, updated_at = $3 WHERE id = $4`, JobCancelled, reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	return nil
}

// RetryJob reinserts the job for a future attempt at scheduledAt,
// setting attempt and recording lastError. It does not compare attempt
// against maxAttempts: the caller checks the budget and uses DiscardJob
// (and marks the Message failed) once it is exhausted.
func RetryJob(id int64, attempt int, scheduledAt time.Time, reason string) error {
	_, err := DB.Exec(
		`UPDATE jobs SET state = $1, attempt = $2, scheduled_at = $3, last_error = $4, updated_at = $5 WHERE id = $6`,
		JobScheduled, attempt, scheduledAt, reason, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to retry job: %w", err)
	}
	return nil
}

// DiscardJob marks a job discarded after exhausting its retry budget.
func DiscardJob(id int64, reason string) error {
	_, err := DB.Exec(`UPDATE jobs SET state = $1, last_error = $2, updated_at = $3 WHERE id = $4`, JobDiscarded, reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to discard job: %w", err)
	}
	return nil
}

// SnoozeJob defers a job by the given delay without incrementing its
// attempt counter — used for the circuit-open outcome, which shouldn't
// burn down the message's retry budget.
func SnoozeJob(id int64, delay time.Duration) error {
	_, err := DB.Exec(
		`UPDATE jobs SET state = $1, scheduled_at = $2, updated_at = $3 WHERE id = $4`,
		JobScheduled, time.Now().UTC().Add(delay), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to snooze job: %w", err)
	}
	return nil
}

// IsQueuePaused reports the pause/resume gate for the given queue.
func IsQueuePaused(queue string) (bool, error) {
	var paused bool
	err := DB.QueryRow(`SELECT paused FROM queue_controls WHERE queue = $1`, queue).Scan(&paused)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read queue pause state: %w", err)
	}
	return paused, nil
}

// SetQueuePaused implements the pause/resume control invoked by the
// status monitor. In-flight jobs run to completion; only new claims
// are gated.
func SetQueuePaused(queue string, paused bool) error {
	res, err := DB.Exec(`UPDATE queue_controls SET paused = $1, updated_at = $2 WHERE queue = $3`, paused, time.Now().UTC(), queue)
	if err != nil {
		return fmt.Errorf("failed to set queue pause state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected setting queue pause: %w", err)
	}
	if n == 0 {
		_, err := DB.Exec(`INSERT INTO queue_controls (queue, paused, updated_at) VALUES ($1, $2, $3)`, queue, paused, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to insert queue control row: %w", err)
		}
	}
	return nil
}

// GetInboundCursor reads the persisted lastSeenIndex.
func GetInboundCursor(name string) (int, error) {
	var idx int
	err := DB.QueryRow(`SELECT last_seen_index FROM inbound_cursors WHERE name = $1`, name).Scan(&idx)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read inbound cursor: %w", err)
	}
	return idx, nil
}

// SetInboundCursor advances lastSeenIndex; callers must only call this
// after successfully inserting the corresponding batch.
func SetInboundCursor(name string, index int) error {
	res, err := DB.Exec(`UPDATE inbound_cursors SET last_seen_index = $1, updated_at = $2 WHERE name = $3`, index, time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("failed to set inbound cursor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected setting inbound cursor: %w", err)
	}
	if n == 0 {
		_, err := DB.Exec(`INSERT INTO inbound_cursors (name, last_seen_index, updated_at) VALUES ($1, $2, $3)`, name, index, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to insert inbound cursor row: %w", err)
		}
	}
	return nil
}
