package gate

import (
	"context"
	"testing"

	"studioflow/api/internal/rbac"
	"studioflow/api/internal/store"
	"studioflow/api/internal/workflow"
)

type fakeRequestStore struct {
	getClientRequestFn     func(context.Context, string) (store.ClientRequest, error)
	insertClientRequestFn  func(context.Context, store.ClientRequest) (store.ClientRequest, error)
	approveClientRequestFn func(context.Context, string, store.Task, store.ActivityLogEntry) (store.Task, bool, error)
	rejectClientRequestFn  func(context.Context, string, string, store.ActivityLogEntry) (bool, error)
}

func (f *fakeRequestStore) GetClientRequest(ctx context.Context, requestID string) (store.ClientRequest, error) {
	return f.getClientRequestFn(ctx, requestID)
}

func (f *fakeRequestStore) InsertClientRequest(ctx context.Context, request store.ClientRequest) (store.ClientRequest, error) {
	if f.insertClientRequestFn != nil {
		return f.insertClientRequestFn(ctx, request)
	}
	request.Status = store.RequestPending
	return request, nil
}

func (f *fakeRequestStore) ApproveClientRequest(ctx context.Context, requestID string, task store.Task, activity store.ActivityLogEntry) (store.Task, bool, error) {
	return f.approveClientRequestFn(ctx, requestID, task, activity)
}

func (f *fakeRequestStore) RejectClientRequest(ctx context.Context, requestID, reason string, activity store.ActivityLogEntry) (bool, error) {
	return f.rejectClientRequestFn(ctx, requestID, reason, activity)
}

var lead = workflow.Actor{ID: "usr_lead", Role: rbac.RoleLead}

func TestSubmitValidatesInput(t *testing.T) {
	g := New(&fakeRequestStore{}, nil)
	ctx := context.Background()

	cases := []struct {
		name  string
		input SubmitInput
	}{
		{"missing client", SubmitInput{Title: "Shoot", Department: store.DeptPhotography}},
		{"missing title", SubmitInput{ClientID: "cli_1", Department: store.DeptPhotography}},
		{"bad department", SubmitInput{ClientID: "cli_1", Title: "Shoot", Department: "plumbing"}},
	}
	for _, tc := range cases {
		if _, err := g.Submit(ctx, tc.input); workflow.KindOf(err) != workflow.KindValidation {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	g := New(&fakeRequestStore{}, nil)

	request, err := g.Submit(context.Background(), SubmitInput{
		ClientID:   "cli_1",
		Title:      "  Spring campaign shoot  ",
		Department: store.DeptPhotography,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if request.Status != store.RequestPending {
		t.Fatalf("expected pending, got %s", request.Status)
	}
	if request.Title != "Spring campaign shoot" {
		t.Fatalf("expected trimmed title, got %q", request.Title)
	}
}

func TestApproveCreatesLinkedTask(t *testing.T) {
	pending := store.ClientRequest{ID: "req_1", ClientID: "cli_1", Title: "Shoot", Department: store.DeptPhotography, Status: store.RequestPending}
	var approvedTask store.Task
	fake := &fakeRequestStore{
		getClientRequestFn: func(_ context.Context, requestID string) (store.ClientRequest, error) {
			return pending, nil
		},
		approveClientRequestFn: func(_ context.Context, requestID string, task store.Task, activity store.ActivityLogEntry) (store.Task, bool, error) {
			approvedTask = task
			pending.Status = store.RequestApproved
			pending.LinkedTaskID = task.ID
			return task, true, nil
		},
	}
	g := New(fake, nil)

	task, request, err := g.Approve(context.Background(), "req_1", lead, ApproveOptions{})
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if task.Status != store.StatusNew || task.ClientID != "cli_1" || task.Title != "Shoot" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if request.Status != store.RequestApproved || request.LinkedTaskID != task.ID {
		t.Fatalf("request not linked to task: %+v", request)
	}
	if approvedTask.CreatorID != "usr_lead" {
		t.Fatalf("approver must be recorded as creator: %+v", approvedTask)
	}
}

func TestApproveWithDefaultAssigneeStartsAssigned(t *testing.T) {
	pending := store.ClientRequest{ID: "req_1", ClientID: "cli_1", Title: "Shoot", Department: store.DeptPhotography, Status: store.RequestPending}
	fake := &fakeRequestStore{
		getClientRequestFn: func(context.Context, string) (store.ClientRequest, error) {
			return pending, nil
		},
		approveClientRequestFn: func(_ context.Context, _ string, task store.Task, _ store.ActivityLogEntry) (store.Task, bool, error) {
			return task, true, nil
		},
	}
	g := New(fake, nil)

	task, _, err := g.Approve(context.Background(), "req_1", lead, ApproveOptions{DefaultAssignee: "usr_worker"})
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if task.Status != store.StatusAssigned || task.AssigneeID != "usr_worker" {
		t.Fatalf("expected assigned task, got %+v", task)
	}
}

func TestApproveFinalizedRequestFails(t *testing.T) {
	fake := &fakeRequestStore{
		getClientRequestFn: func(context.Context, string) (store.ClientRequest, error) {
			return store.ClientRequest{ID: "req_1", Status: store.RequestRejected}, nil
		},
	}
	g := New(fake, nil)

	_, _, err := g.Approve(context.Background(), "req_1", lead, ApproveOptions{})
	if workflow.KindOf(err) != workflow.KindAlreadyFinalized {
		t.Fatalf("expected already finalized, got %v", err)
	}
}

func TestApproveLostRaceRollsBack(t *testing.T) {
	// The read saw pending but the conditional write lost; the store
	// reports ok=false and nothing was committed.
	calls := 0
	fake := &fakeRequestStore{
		getClientRequestFn: func(context.Context, string) (store.ClientRequest, error) {
			calls++
			if calls == 1 {
				return store.ClientRequest{ID: "req_1", Status: store.RequestPending}, nil
			}
			return store.ClientRequest{ID: "req_1", Status: store.RequestRejected}, nil
		},
		approveClientRequestFn: func(context.Context, string, store.Task, store.ActivityLogEntry) (store.Task, bool, error) {
			return store.Task{}, false, nil
		},
	}
	g := New(fake, nil)

	_, _, err := g.Approve(context.Background(), "req_1", lead, ApproveOptions{})
	if workflow.KindOf(err) != workflow.KindAlreadyFinalized {
		t.Fatalf("expected already finalized after lost race, got %v", err)
	}
}

func TestApproveForbiddenForMembersAndClients(t *testing.T) {
	g := New(&fakeRequestStore{}, nil)
	for _, role := range []rbac.Role{rbac.RoleMember, rbac.RoleClient} {
		_, _, err := g.Approve(context.Background(), "req_1", workflow.Actor{ID: "usr_1", Role: role}, ApproveOptions{})
		if workflow.KindOf(err) != workflow.KindForbidden {
			t.Fatalf("role %s: expected forbidden, got %v", role, err)
		}
	}
}

func TestRejectRequiresReason(t *testing.T) {
	g := New(&fakeRequestStore{}, nil)

	_, err := g.Reject(context.Background(), "req_1", lead, "   ")
	if workflow.KindOf(err) != workflow.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRejectFinalizesPendingRequest(t *testing.T) {
	state := store.ClientRequest{ID: "req_1", Status: store.RequestPending}
	fake := &fakeRequestStore{
		getClientRequestFn: func(context.Context, string) (store.ClientRequest, error) {
			return state, nil
		},
		rejectClientRequestFn: func(_ context.Context, _ string, reason string, _ store.ActivityLogEntry) (bool, error) {
			state.Status = store.RequestRejected
			state.RejectionReason = reason
			return true, nil
		},
	}
	g := New(fake, nil)

	request, err := g.Reject(context.Background(), "req_1", lead, "out of scope")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if request.Status != store.RequestRejected || request.RejectionReason != "out of scope" {
		t.Fatalf("unexpected request: %+v", request)
	}
}

func TestRejectFinalizedRequestFails(t *testing.T) {
	fake := &fakeRequestStore{
		getClientRequestFn: func(context.Context, string) (store.ClientRequest, error) {
			return store.ClientRequest{ID: "req_1", Status: store.RequestApproved}, nil
		},
		rejectClientRequestFn: func(context.Context, string, string, store.ActivityLogEntry) (bool, error) {
			return false, nil
		},
	}
	g := New(fake, nil)

	_, err := g.Reject(context.Background(), "req_1", lead, "late")
	if workflow.KindOf(err) != workflow.KindAlreadyFinalized {
		t.Fatalf("expected already finalized, got %v", err)
	}
}
