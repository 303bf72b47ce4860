package export

import (
	"context"
	"fmt"
	"time"

	"studioflow/api/internal/store"
)

// BoardStore defines the data access needed to build a report
type BoardStore interface {
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]store.Task, error)
	CountTasksByStatus(ctx context.Context, filter store.TaskFilter) (map[store.TaskStatus]int, error)
}

// Service builds board report exports
type Service struct {
	store BoardStore
}

// NewService creates a new export service
func NewService(store BoardStore) *Service {
	return &Service{store: store}
}

// sectionOrder fixes the report layout to the workflow's own ordering.
var sectionOrder = []store.TaskStatus{
	store.StatusNew,
	store.StatusAssigned,
	store.StatusInProgress,
	store.StatusSubmittedForReview,
	store.StatusRevisionRequested,
	store.StatusApproved,
	store.StatusDone,
	store.StatusCancelled,
}

// Export generates a board report in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	title := req.Title
	if title == "" {
		title = "Board Report"
	}

	tasks, err := s.store.ListTasks(ctx, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	switch req.Format {
	case FormatCSV:
		return exportCSV(tasks, title)
	case FormatPDF:
		counts, err := s.store.CountTasksByStatus(ctx, req.Filter)
		if err != nil {
			return nil, fmt.Errorf("count tasks: %w", err)
		}
		html, err := RenderBoardHTML(buildBoardData(title, tasks, counts))
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		return exportPDF(html, title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}

func buildBoardData(title string, tasks []store.Task, counts map[store.TaskStatus]int) BoardData {
	data := BoardData{
		Title:       title,
		GeneratedAt: time.Now(),
	}

	byStatus := map[store.TaskStatus][]BoardRow{}
	for _, task := range tasks {
		byStatus[task.Status] = append(byStatus[task.Status], BoardRow{
			ID:            task.ID,
			Title:         task.Title,
			Department:    string(task.Department),
			Priority:      string(task.Priority),
			AssigneeID:    task.AssigneeID,
			RevisionCount: task.RevisionCount,
			UpdatedAt:     task.UpdatedAt,
		})
	}

	for _, status := range sectionOrder {
		if count := counts[status]; count > 0 {
			data.Counts = append(data.Counts, StatusCount{Status: string(status), Count: count})
		}
		data.Sections = append(data.Sections, BoardSection{
			Status: string(status),
			Tasks:  byStatus[status],
		})
	}
	return data
}
