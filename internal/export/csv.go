package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"studioflow/api/internal/store"
)

// exportCSV renders tasks as a flat CSV download
func exportCSV(tasks []store.Task, title string) (*Result, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "title", "department", "status", "priority", "assignee_id", "project_id", "revision_count", "created_at", "updated_at"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, task := range tasks {
		row := []string{
			task.ID,
			task.Title,
			string(task.Department),
			string(task.Status),
			string(task.Priority),
			task.AssigneeID,
			task.ProjectID,
			fmt.Sprintf("%d", task.RevisionCount),
			task.CreatedAt.Format(time.RFC3339),
			task.UpdatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: sanitizeFilename(title) + ".csv",
		MimeType: "text/csv",
	}, nil
}
