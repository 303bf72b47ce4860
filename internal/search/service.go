package search

import (
	"context"

	"studioflow/api/internal/logging"
	"studioflow/api/internal/store"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	log := logging.With("search")
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.WithError(err).Warn("meilisearch error, falling back to pgfts")
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.WithError(err).Error("pgfts search")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexTask indexes a task (fire-and-forget to Meilisearch).
func (s *Service) IndexTask(task store.Task) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := taskRecord(task)
	go func() {
		if err := s.meili.IndexTask(record); err != nil {
			logging.With("search").WithError(err).Warnf("index task %s", record.ID)
		}
	}()
}

// IndexRequest indexes a client request (fire-and-forget to Meilisearch).
func (s *Service) IndexRequest(request store.ClientRequest) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := requestRecord(request)
	go func() {
		if err := s.meili.IndexRequest(record); err != nil {
			logging.With("search").WithError(err).Warnf("index request %s", record.ID)
		}
	}()
}

// DeleteTask removes a task from the search index (fire-and-forget).
func (s *Service) DeleteTask(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteTask(id); err != nil {
			logging.With("search").WithError(err).Warnf("delete task %s", id)
		}
	}()
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into
// Meilisearch. Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	log := logging.With("search")
	tasks, requests, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.WithError(err).Error("reindex load")
		return
	}
	if err := s.meili.IndexTasks(tasks); err != nil {
		log.WithError(err).Error("reindex tasks")
	}
	if err := s.meili.IndexRequests(requests); err != nil {
		log.WithError(err).Error("reindex requests")
	}
}

func taskRecord(t store.Task) TaskRecord {
	return TaskRecord{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Department:  string(t.Department),
		Status:      string(t.Status),
		ProjectID:   t.ProjectID,
		AssigneeID:  t.AssigneeID,
	}
}

func requestRecord(r store.ClientRequest) RequestRecord {
	return RequestRecord{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Department:  string(r.Department),
		Status:      string(r.Status),
		ClientID:    r.ClientID,
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
