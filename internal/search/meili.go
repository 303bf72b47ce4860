package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"studioflow/api/internal/logging"
)

const (
	idxTasks    = "studioflow_tasks"
	idxRequests = "studioflow_requests"
)

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures indexes. The
// caller proceeds without search if the instance never comes up; the
// health loop keeps probing either way.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		logging.With("search").WithError(err).Warnf("meilisearch unavailable at %s", url)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	log := logging.With("search")
	indexes := []struct {
		uid        string
		primaryKey string
		filterable []string
		searchable []string
	}{
		{
			uid:        idxTasks,
			primaryKey: "id",
			filterable: []string{"department", "status", "projectId", "assigneeId"},
			searchable: []string{"title", "description"},
		},
		{
			uid:        idxRequests,
			primaryKey: "id",
			filterable: []string{"department", "status", "clientId"},
			searchable: []string{"title", "description"},
		},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: idx.primaryKey,
		}); err != nil {
			log.WithError(err).Debugf("create index %s (may already exist)", idx.uid)
		}

		index := m.client.Index(idx.uid)
		filterableInterface := make([]interface{}, len(idx.filterable))
		for i, v := range idx.filterable {
			filterableInterface[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterableInterface); err != nil {
			log.WithError(err).Warnf("update filterable attrs for %s", idx.uid)
		}
		if _, err := index.UpdateSearchableAttributes(&idx.searchable); err != nil {
			log.WithError(err).Warnf("update searchable attrs for %s", idx.uid)
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				logging.With("search").Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries both indexes (or a filtered subset) and merges results.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	var queries []*meili.SearchRequest
	targetIndexes := []struct {
		uid  string
		rtyp ResultType
	}{
		{idxTasks, ResultTask},
		{idxRequests, ResultRequest},
	}

	for _, ti := range targetIndexes {
		if q.FilterType != "" && q.FilterType != ti.rtyp {
			continue
		}
		if q.IsClient && ti.rtyp == ResultTask {
			continue
		}
		sr := &meili.SearchRequest{
			IndexUID:              ti.uid,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
		}

		var filters []string
		if q.FilterDepartment != "" {
			filters = append(filters, fmt.Sprintf("department = %q", q.FilterDepartment))
		}
		if q.FilterStatus != "" {
			filters = append(filters, fmt.Sprintf("status = %q", q.FilterStatus))
		}
		if q.FilterProjectID != "" && ti.rtyp == ResultTask {
			filters = append(filters, fmt.Sprintf("projectId = %q", q.FilterProjectID))
		}
		if q.IsClient && ti.rtyp == ResultRequest {
			filters = append(filters, fmt.Sprintf("clientId = %q", q.ClientID))
		}
		if len(filters) > 0 {
			sr.Filter = filters
		}
		queries = append(queries, sr)
	}

	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}

	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxTasks:
		return ResultTask
	case idxRequests:
		return ResultRequest
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp}
	r.ID = decodeString(hit, "id")
	r.Department = decodeString(hit, "department")
	r.Status = decodeString(hit, "status")
	r.ProjectID = decodeString(hit, "projectId")
	r.ClientID = decodeString(hit, "clientId")
	r.Title = firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title"))
	r.Snippet = firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description"))
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexTask adds or updates a task in the search index.
func (m *Meili) IndexTask(t TaskRecord) error {
	_, err := m.client.Index(idxTasks).AddDocuments([]TaskRecord{t}, nil)
	return err
}

// IndexRequest adds or updates a client request in the search index.
func (m *Meili) IndexRequest(r RequestRecord) error {
	_, err := m.client.Index(idxRequests).AddDocuments([]RequestRecord{r}, nil)
	return err
}

// DeleteTask removes a task from the search index.
func (m *Meili) DeleteTask(id string) error {
	_, err := m.client.Index(idxTasks).DeleteDocument(id, nil)
	return err
}

// DeleteRequest removes a client request from the search index.
func (m *Meili) DeleteRequest(id string) error {
	_, err := m.client.Index(idxRequests).DeleteDocument(id, nil)
	return err
}

// IndexTasks bulk-indexes tasks.
func (m *Meili) IndexTasks(tasks []TaskRecord) error {
	if len(tasks) == 0 {
		return nil
	}
	_, err := m.client.Index(idxTasks).AddDocuments(tasks, nil)
	return err
}

// IndexRequests bulk-indexes client requests.
func (m *Meili) IndexRequests(requests []RequestRecord) error {
	if len(requests) == 0 {
		return nil
	}
	_, err := m.client.Index(idxRequests).AddDocuments(requests, nil)
	return err
}
