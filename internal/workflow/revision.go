package workflow

import "studioflow/api/internal/store"

// DefaultRevisionCap is the number of revision rounds a task gets before
// the engine starts raising escalation signals.
const DefaultRevisionCap = 3

// RevisionPolicy is the advisory cap on the revision loop. Exceeding it
// never blocks a transition; production work must not deadlock on a
// stuck review.
type RevisionPolicy struct {
	Cap int
}

func (p RevisionPolicy) cap() int {
	if p.Cap <= 0 {
		return DefaultRevisionCap
	}
	return p.Cap
}

// Exceeded reports whether count has used up the revision budget. The
// round that reaches the cap is the one that escalates.
func (p RevisionPolicy) Exceeded(count int) bool {
	return count >= p.cap()
}

// NeedsEscalation is the derived flag surfaced on task reads for tasks
// whose revision count ran past the cap.
func (p RevisionPolicy) NeedsEscalation(task store.Task) bool {
	return p.Exceeded(task.RevisionCount)
}

// EscalationSignal tells a supervisor that a task keeps bouncing through
// the revision loop. It is advisory: the transition that raised it has
// already happened.
type EscalationSignal struct {
	TaskID        string `json:"taskId"`
	RevisionCount int    `json:"revisionCount"`
	Cap           int    `json:"cap"`
	Note          string `json:"note,omitempty"`
}

func (p RevisionPolicy) signal(task store.Task, note string) *EscalationSignal {
	if !p.Exceeded(task.RevisionCount) {
		return nil
	}
	return &EscalationSignal{
		TaskID:        task.ID,
		RevisionCount: task.RevisionCount,
		Cap:           p.cap(),
		Note:          note,
	}
}
