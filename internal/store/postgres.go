package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrHasReferences is returned when a task cannot be hard-deleted because
// comments or attachments still point at it.
var ErrHasReferences = errors.New("task has comments or attachments")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const taskColumns = `
	id, title, description, department, status, priority, workflow_stage,
	COALESCE(assignee_id, ''), creator_id, COALESCE(client_id, ''), COALESCE(project_id, ''),
	deadline, scheduled_date, revision_count, cancel_reason, created_at, updated_at
`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var t Task
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Department,
		&t.Status,
		&t.Priority,
		&t.WorkflowStage,
		&t.AssigneeID,
		&t.CreatorID,
		&t.ClientID,
		&t.ProjectID,
		&t.Deadline,
		&t.ScheduledDate,
		&t.RevisionCount,
		&t.CancelReason,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

func (s *PostgresStore) InsertTask(ctx context.Context, task Task) (Task, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (id, title, description, department, status, priority, workflow_stage,
			assignee_id, creator_id, client_id, project_id, deadline, scheduled_date, revision_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, NULLIF($10, ''), NULLIF($11, ''), $12, $13, $14)
		RETURNING `+taskColumns,
		task.ID, task.Title, task.Description, task.Department, task.Status, task.Priority,
		task.WorkflowStage, task.AssigneeID, task.CreatorID, task.ClientID, task.ProjectID,
		task.Deadline, task.ScheduledDate, task.RevisionCount,
	)
	inserted, err := scanTask(row)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, taskID)
	return scanTask(row)
}

func (s *PostgresStore) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE ($1='' OR creator_id=$1)
		  AND ($2='' OR department=$2)
		  AND ($3='' OR project_id=$3)
		  AND ($4='' OR assignee_id=$4)
		ORDER BY updated_at DESC
	`, filter.LeaderID, string(filter.Department), filter.ProjectID, filter.AssigneeID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		item, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		if len(filter.Statuses) > 0 && !filter.Matches(item) {
			continue
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

// TransitionTask applies patch to the task only if its status still equals
// expected. The second return value is false when the conditional check
// lost, meaning another writer changed the row first.
func (s *PostgresStore) TransitionTask(ctx context.Context, taskID string, expected TaskStatus, patch TaskPatch) (Task, bool, error) {
	increment := 0
	if patch.IncrementRevision {
		increment = 1
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE tasks
		SET status=$3,
			assignee_id=COALESCE(NULLIF($4, ''), assignee_id),
			workflow_stage=COALESCE($5, workflow_stage),
			cancel_reason=COALESCE($6, cancel_reason),
			revision_count=revision_count + $7,
			updated_at=NOW()
		WHERE id=$1 AND status=$2
		RETURNING `+taskColumns,
		taskID, expected, patch.Status,
		stringOrEmpty(patch.AssigneeID), patch.WorkflowStage, patch.CancelReason, increment,
	)
	updated, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, fmt.Errorf("transition task: %w", err)
	}
	return updated, true, nil
}

// UpdateTaskStage changes the department-specific substate without
// touching the main status.
func (s *PostgresStore) UpdateTaskStage(ctx context.Context, taskID, stage string) (Task, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE tasks SET workflow_stage=$2, updated_at=NOW()
		WHERE id=$1
		RETURNING `+taskColumns, taskID, stage)
	return scanTask(row)
}

// DeleteTask hard-deletes a task. It is blocked while any comment or
// attachment rows still reference the task, soft-deleted ones included.
func (s *PostgresStore) DeleteTask(ctx context.Context, taskID string) error {
	var refs int
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM comments WHERE task_id=$1)
		     + (SELECT COUNT(*) FROM attachments WHERE task_id=$1)
	`, taskID).Scan(&refs)
	if err != nil {
		return fmt.Errorf("count task references: %w", err)
	}
	if refs > 0 {
		return ErrHasReferences
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountTasksByStatus(ctx context.Context, filter TaskFilter) (map[TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*)::int
		FROM tasks
		WHERE ($1='' OR creator_id=$1)
		  AND ($2='' OR department=$2)
		  AND ($3='' OR project_id=$3)
		  AND ($4='' OR assignee_id=$4)
		GROUP BY status
	`, filter.LeaderID, string(filter.Department), filter.ProjectID, filter.AssigneeID)
	if err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[TaskStatus]int)
	for rows.Next() {
		var status TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}

const requestColumns = `
	id, client_id, title, description, department, request_type, desired_date,
	status, rejection_reason, COALESCE(linked_task_id, ''), created_at, updated_at
`

func scanClientRequest(row interface{ Scan(...any) error }) (ClientRequest, error) {
	var r ClientRequest
	err := row.Scan(
		&r.ID,
		&r.ClientID,
		&r.Title,
		&r.Description,
		&r.Department,
		&r.Type,
		&r.DesiredDate,
		&r.Status,
		&r.RejectionReason,
		&r.LinkedTaskID,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func (s *PostgresStore) InsertClientRequest(ctx context.Context, request ClientRequest) (ClientRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO client_requests (id, client_id, title, description, department, request_type, desired_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
		RETURNING `+requestColumns,
		request.ID, request.ClientID, request.Title, request.Description,
		request.Department, request.Type, request.DesiredDate,
	)
	inserted, err := scanClientRequest(row)
	if err != nil {
		return ClientRequest{}, fmt.Errorf("insert client request: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) GetClientRequest(ctx context.Context, requestID string) (ClientRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM client_requests WHERE id=$1`, requestID)
	return scanClientRequest(row)
}

func (s *PostgresStore) ListClientRequests(ctx context.Context, status RequestStatus) ([]ClientRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM client_requests
		WHERE ($1='' OR status=$1)
		ORDER BY created_at DESC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list client requests: %w", err)
	}
	defer rows.Close()

	items := make([]ClientRequest, 0)
	for rows.Next() {
		item, err := scanClientRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client request: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client requests: %w", err)
	}
	return items, nil
}

// ApproveClientRequest creates the task and finalizes the request in one
// transaction. The second return value is false when the request was no
// longer pending; in that case nothing is written, the task included.
func (s *PostgresStore) ApproveClientRequest(ctx context.Context, requestID string, task Task, activity ActivityLogEntry) (Task, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Task{}, false, fmt.Errorf("begin approve tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO tasks (id, title, description, department, status, priority, workflow_stage,
			assignee_id, creator_id, client_id, project_id, deadline, scheduled_date, revision_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, NULLIF($10, ''), NULLIF($11, ''), $12, $13, 0)
		RETURNING `+taskColumns,
		task.ID, task.Title, task.Description, task.Department, task.Status, task.Priority,
		task.WorkflowStage, task.AssigneeID, task.CreatorID, task.ClientID, task.ProjectID,
		task.Deadline, task.ScheduledDate,
	)
	inserted, err := scanTask(row)
	if err != nil {
		return Task{}, false, fmt.Errorf("approve: insert task: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE client_requests
		SET status='approved', linked_task_id=$2, updated_at=NOW()
		WHERE id=$1 AND status='pending'
	`, requestID, inserted.ID)
	if err != nil {
		return Task{}, false, fmt.Errorf("approve: finalize request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Task{}, false, fmt.Errorf("approve: finalize request rows: %w", err)
	}
	if affected == 0 {
		return Task{}, false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO activity_log (actor_id, action, entity_kind, entity_id, detail)
		VALUES ($1, $2, $3, $4, $5)
	`, activity.ActorID, activity.Action, activity.EntityKind, activity.EntityID, activity.Detail); err != nil {
		return Task{}, false, fmt.Errorf("approve: append activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Task{}, false, fmt.Errorf("commit approve tx: %w", err)
	}
	return inserted, true, nil
}

// RejectClientRequest finalizes a pending request with a reason. Returns
// false when the request was already terminal.
func (s *PostgresStore) RejectClientRequest(ctx context.Context, requestID, reason string, activity ActivityLogEntry) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin reject tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE client_requests
		SET status='rejected', rejection_reason=$2, updated_at=NOW()
		WHERE id=$1 AND status='pending'
	`, requestID, reason)
	if err != nil {
		return false, fmt.Errorf("reject request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reject request rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO activity_log (actor_id, action, entity_kind, entity_id, detail)
		VALUES ($1, $2, $3, $4, $5)
	`, activity.ActorID, activity.Action, activity.EntityKind, activity.EntityID, activity.Detail); err != nil {
		return false, fmt.Errorf("reject: append activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit reject tx: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) (Comment, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (id, task_id, author_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, task_id, author_id, body, deleted_at, created_at
	`, comment.ID, comment.TaskID, comment.AuthorID, comment.Body)
	var inserted Comment
	if err := row.Scan(&inserted.ID, &inserted.TaskID, &inserted.AuthorID, &inserted.Body, &inserted.DeletedAt, &inserted.CreatedAt); err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, taskID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, author_id, body, deleted_at, created_at
		FROM comments
		WHERE task_id=$1 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.TaskID, &item.AuthorID, &item.Body, &item.DeletedAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SoftDeleteComment(ctx context.Context, taskID, commentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments SET deleted_at=NOW()
		WHERE id=$1 AND task_id=$2 AND deleted_at IS NULL
	`, commentID, taskID)
	if err != nil {
		return false, fmt.Errorf("soft delete comment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("soft delete comment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) InsertAttachment(ctx context.Context, attachment Attachment) (Attachment, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO attachments (id, task_id, uploader_id, file_name, object_key, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, task_id, uploader_id, file_name, object_key, size_bytes, deleted_at, created_at
	`, attachment.ID, attachment.TaskID, attachment.UploaderID, attachment.FileName, attachment.ObjectKey, attachment.SizeBytes)
	var inserted Attachment
	if err := row.Scan(&inserted.ID, &inserted.TaskID, &inserted.UploaderID, &inserted.FileName, &inserted.ObjectKey, &inserted.SizeBytes, &inserted.DeletedAt, &inserted.CreatedAt); err != nil {
		return Attachment{}, fmt.Errorf("insert attachment: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, taskID string) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, uploader_id, file_name, object_key, size_bytes, deleted_at, created_at
		FROM attachments
		WHERE task_id=$1 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := make([]Attachment, 0)
	for rows.Next() {
		var item Attachment
		if err := rows.Scan(&item.ID, &item.TaskID, &item.UploaderID, &item.FileName, &item.ObjectKey, &item.SizeBytes, &item.DeletedAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SoftDeleteAttachment(ctx context.Context, taskID, attachmentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE attachments SET deleted_at=NOW()
		WHERE id=$1 AND task_id=$2 AND deleted_at IS NULL
	`, attachmentID, taskID)
	if err != nil {
		return false, fmt.Errorf("soft delete attachment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("soft delete attachment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) AppendActivity(ctx context.Context, entry ActivityLogEntry) (ActivityLogEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO activity_log (actor_id, action, entity_kind, entity_id, detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, actor_id, action, entity_kind, entity_id, detail, created_at
	`, entry.ActorID, entry.Action, entry.EntityKind, entry.EntityID, entry.Detail)
	var inserted ActivityLogEntry
	if err := row.Scan(&inserted.ID, &inserted.ActorID, &inserted.Action, &inserted.EntityKind, &inserted.EntityID, &inserted.Detail, &inserted.CreatedAt); err != nil {
		return ActivityLogEntry{}, fmt.Errorf("append activity: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) ListEntityActivity(ctx context.Context, entityKind, entityID string, limit int) ([]ActivityLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, action, entity_kind, entity_id, detail, created_at
		FROM activity_log
		WHERE entity_kind=$1 AND entity_id=$2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityKind, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list entity activity: %w", err)
	}
	return collectActivity(rows)
}

func (s *PostgresStore) ListRecentActivity(ctx context.Context, limit int) ([]ActivityLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, action, entity_kind, entity_id, detail, created_at
		FROM activity_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent activity: %w", err)
	}
	return collectActivity(rows)
}

func collectActivity(rows *sql.Rows) ([]ActivityLogEntry, error) {
	defer rows.Close()
	items := make([]ActivityLogEntry, 0)
	for rows.Next() {
		var item ActivityLogEntry
		if err := rows.Scan(&item.ID, &item.ActorID, &item.Action, &item.EntityKind, &item.EntityID, &item.Detail, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpsertUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			display_name=EXCLUDED.display_name,
			email=CASE WHEN EXCLUDED.email='' THEN users.email ELSE EXCLUDED.email END,
			role=EXCLUDED.role
	`, user.ID, user.DisplayName, user.Email, user.Role)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, created_at FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, created_at FROM users WHERE email=$1
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) SetUserPassword(ctx context.Context, userID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2 WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func stringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
