package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultTask    ResultType = "task"
	ResultRequest ResultType = "request"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Snippet    string     `json:"snippet"`
	Department string     `json:"department"`
	Status     string     `json:"status"`
	ProjectID  string     `json:"projectId,omitempty"`
	ClientID   string     `json:"clientId,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text             string
	FilterType       ResultType // empty = all types
	FilterDepartment string
	FilterProjectID  string
	FilterStatus     string
	Limit            int
	Offset           int
	IsClient         bool // client principals only see their own requests
	ClientID         string
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexTask(t TaskRecord) error
	IndexRequest(r RequestRecord) error
	DeleteTask(id string) error
	DeleteRequest(id string) error
}

// TaskRecord is the data we index for a task.
type TaskRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Department  string `json:"department"`
	Status      string `json:"status"`
	ProjectID   string `json:"projectId"`
	AssigneeID  string `json:"assigneeId"`
}

// RequestRecord is the data we index for a client request.
type RequestRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Department  string `json:"department"`
	Status      string `json:"status"`
	ClientID    string `json:"clientId"`
}
