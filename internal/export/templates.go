package export

import (
	"bytes"
	"html/template"
	"strings"
	"time"
)

var boardTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}
	boardTemplate = template.Must(template.New("board").Funcs(funcMap).Parse(boardReportTemplate))
}

// BoardData holds data for board report rendering
type BoardData struct {
	Title       string
	GeneratedAt time.Time
	Counts      []StatusCount
	Sections    []BoardSection
}

// StatusCount is one line of the report summary
type StatusCount struct {
	Status string
	Count  int
}

// BoardSection groups the tasks sharing a workflow status
type BoardSection struct {
	Status string
	Tasks  []BoardRow
}

// BoardRow is one task line in a report section
type BoardRow struct {
	ID            string
	Title         string
	Department    string
	Priority      string
	AssigneeID    string
	RevisionCount int
	UpdatedAt     time.Time
}

// RenderBoardHTML renders the board report template with provided data
func RenderBoardHTML(data BoardData) (string, error) {
	var buf bytes.Buffer
	if err := boardTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const boardReportTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 900px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 2rem; text-transform: capitalize; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .summary { display: flex; gap: 1.5rem; flex-wrap: wrap; margin-bottom: 1rem; }
    .summary div { background: #f5f5f5; padding: 0.5rem 1rem; border-radius: 4px; }
    table { border-collapse: collapse; width: 100%; font-size: 0.9em; }
    th, td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid #ddd; }
    th { background: #f0f0f0; }
    .empty { color: #999; font-style: italic; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">Generated {{formatDate .GeneratedAt "Jan 2, 2006 15:04 MST"}}</div>

  <div class="summary">
    {{range .Counts}}<div><strong>{{.Count}}</strong> {{.Status}}</div>{{end}}
  </div>

  {{range .Sections}}
  <h2>{{.Status}}</h2>
  {{if .Tasks}}
  <table>
    <tr><th>ID</th><th>Title</th><th>Department</th><th>Priority</th><th>Assignee</th><th>Revisions</th><th>Updated</th></tr>
    {{range .Tasks}}
    <tr>
      <td>{{.ID}}</td>
      <td>{{.Title}}</td>
      <td>{{.Department}}</td>
      <td>{{.Priority}}</td>
      <td>{{.AssigneeID}}</td>
      <td>{{.RevisionCount}}</td>
      <td>{{formatDate .UpdatedAt "Jan 2, 2006"}}</td>
    </tr>
    {{end}}
  </table>
  {{else}}<p class="empty">No tasks.</p>{{end}}
  {{end}}
</body>
</html>`
