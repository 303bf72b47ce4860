package store

import "time"

// TaskStatus is the main lifecycle state of a task. Transitions between
// statuses go through the workflow engine, never by direct writes.
type TaskStatus string

const (
	StatusNew                TaskStatus = "new"
	StatusAssigned           TaskStatus = "assigned"
	StatusInProgress         TaskStatus = "in_progress"
	StatusSubmittedForReview TaskStatus = "submitted_for_review"
	StatusRevisionRequested  TaskStatus = "revision_requested"
	StatusApproved           TaskStatus = "approved"
	StatusDone               TaskStatus = "done"
	StatusCancelled          TaskStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible from s.
func (s TaskStatus) Terminal() bool {
	return s == StatusDone || s == StatusCancelled
}

type Department string

const (
	DeptContent     Department = "content"
	DeptDesign      Department = "design"
	DeptPhotography Department = "photography"
	DeptVideo       Department = "video"
	DeptEditing     Department = "editing"
)

var Departments = []Department{DeptContent, DeptDesign, DeptPhotography, DeptVideo, DeptEditing}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Department    Department `json:"department"`
	Status        TaskStatus `json:"status"`
	Priority      Priority   `json:"priority"`
	WorkflowStage string     `json:"workflowStage,omitempty"`
	AssigneeID    string     `json:"assigneeId,omitempty"`
	CreatorID     string     `json:"creatorId"`
	ClientID      string     `json:"clientId,omitempty"`
	ProjectID     string     `json:"projectId,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	RevisionCount int        `json:"revisionCount"`
	CancelReason  string     `json:"cancelReason,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// ClientRequest is an externally submitted work request. Its status is
// write-once terminal: pending -> approved|rejected and nothing after.
type ClientRequest struct {
	ID              string        `json:"id"`
	ClientID        string        `json:"clientId"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Department      Department    `json:"department"`
	Type            string        `json:"type,omitempty"`
	DesiredDate     *time.Time    `json:"desiredDate,omitempty"`
	Status          RequestStatus `json:"status"`
	RejectionReason string        `json:"rejectionReason,omitempty"`
	LinkedTaskID    string        `json:"linkedTaskId,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

type Comment struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"taskId"`
	AuthorID  string     `json:"authorId"`
	Body      string     `json:"body"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type Attachment struct {
	ID         string     `json:"id"`
	TaskID     string     `json:"taskId"`
	UploaderID string     `json:"uploaderId"`
	FileName   string     `json:"fileName"`
	ObjectKey  string     `json:"objectKey"`
	SizeBytes  int64      `json:"sizeBytes"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// ActivityLogEntry is an append-only audit record. Entries are never
// updated or deleted.
type ActivityLogEntry struct {
	ID         int64     `json:"id"`
	ActorID    string    `json:"actorId"`
	Action     string    `json:"action"`
	EntityKind string    `json:"entityKind"`
	EntityID   string    `json:"entityId"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TaskFilter scopes task queries to a board view: a team leader's tasks
// (by creator), a department column, a project, or a single assignee.
type TaskFilter struct {
	LeaderID   string
	Department Department
	ProjectID  string
	AssigneeID string
	Statuses   []TaskStatus
}

// Matches reports whether t belongs to the filtered set. An empty filter
// matches everything.
func (f TaskFilter) Matches(t Task) bool {
	if f.LeaderID != "" && t.CreatorID != f.LeaderID {
		return false
	}
	if f.Department != "" && t.Department != f.Department {
		return false
	}
	if f.ProjectID != "" && t.ProjectID != f.ProjectID {
		return false
	}
	if f.AssigneeID != "" && t.AssigneeID != f.AssigneeID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// TaskPatch describes the fields a workflow transition may change.
// Status is always set; the rest apply only when non-nil.
type TaskPatch struct {
	Status            TaskStatus
	AssigneeID        *string
	WorkflowStage     *string
	CancelReason      *string
	IncrementRevision bool
}
