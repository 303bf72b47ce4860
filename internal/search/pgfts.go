package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across tasks and client_requests
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if (q.FilterType == "" || q.FilterType == ResultTask) && !q.IsClient {
		taskWhere := "t.fts @@ " + tsQuery
		if q.FilterDepartment != "" {
			taskWhere += fmt.Sprintf(" AND t.department = $%d", argN)
			args = append(args, q.FilterDepartment)
			argN++
		}
		if q.FilterStatus != "" {
			taskWhere += fmt.Sprintf(" AND t.status = $%d", argN)
			args = append(args, q.FilterStatus)
			argN++
		}
		if q.FilterProjectID != "" {
			taskWhere += fmt.Sprintf(" AND t.project_id = $%d", argN)
			args = append(args, q.FilterProjectID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'task'::text AS type, t.id, t.title,
				ts_headline('english', coalesce(t.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				t.department, t.status,
				coalesce(t.project_id, '') AS project_id,
				coalesce(t.client_id, '') AS client_id,
				ts_rank(t.fts, %s) AS rank
			FROM tasks t
			WHERE %s`, tsQuery, tsQuery, taskWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultRequest {
		reqWhere := "r.fts @@ " + tsQuery
		if q.FilterDepartment != "" {
			reqWhere += fmt.Sprintf(" AND r.department = $%d", argN)
			args = append(args, q.FilterDepartment)
			argN++
		}
		if q.FilterStatus != "" {
			reqWhere += fmt.Sprintf(" AND r.status = $%d", argN)
			args = append(args, q.FilterStatus)
			argN++
		}
		if q.IsClient {
			reqWhere += fmt.Sprintf(" AND r.client_id = $%d", argN)
			args = append(args, q.ClientID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'request'::text AS type, r.id, r.title,
				ts_headline('english', coalesce(r.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				r.department, r.status,
				''::text AS project_id,
				r.client_id,
				ts_rank(r.fts, %s) AS rank
			FROM client_requests r
			WHERE %s`, tsQuery, tsQuery, reqWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, department, status, project_id, client_id
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.Department, &r.Status, &r.ProjectID, &r.ClientID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]TaskRecord, []RequestRecord, error) {
	taskRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, description, department, status,
			coalesce(project_id, ''), coalesce(assignee_id, '')
		FROM tasks
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load tasks: %w", err)
	}
	defer taskRows.Close()

	tasks := make([]TaskRecord, 0)
	for taskRows.Next() {
		var t TaskRecord
		if err := taskRows.Scan(&t.ID, &t.Title, &t.Description, &t.Department, &t.Status, &t.ProjectID, &t.AssigneeID); err != nil {
			return nil, nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := taskRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate tasks: %w", err)
	}

	requestRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, description, department, status, client_id
		FROM client_requests
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load requests: %w", err)
	}
	defer requestRows.Close()

	requests := make([]RequestRecord, 0)
	for requestRows.Next() {
		var r RequestRecord
		if err := requestRows.Scan(&r.ID, &r.Title, &r.Description, &r.Department, &r.Status, &r.ClientID); err != nil {
			return nil, nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := requestRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate requests: %w", err)
	}

	return tasks, requests, nil
}
