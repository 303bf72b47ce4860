package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"studioflow/api/internal/authpw"
	"studioflow/api/internal/feed"
	"studioflow/api/internal/notify"
	"studioflow/api/internal/store"
	"studioflow/api/internal/workflow"
)

// fakeStore backs app tests with function fields so each test overrides
// only the calls it cares about. Unset calls return zero values.
type fakeStore struct {
	pingFn       func(context.Context) error
	insertTaskFn func(context.Context, store.Task) (store.Task, error)
	getTaskFn    func(context.Context, string) (store.Task, error)
	listTasksFn  func(context.Context, store.TaskFilter) ([]store.Task, error)
	upsertUserFn func(context.Context, store.User) error

	usersByID    map[string]store.User
	usersByEmail map[string]store.User
	activity     []store.ActivityLogEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		usersByID:    make(map[string]store.User),
		usersByEmail: make(map[string]store.User),
	}
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) InsertTask(ctx context.Context, task store.Task) (store.Task, error) {
	if f.insertTaskFn != nil {
		return f.insertTaskFn(ctx, task)
	}
	return task, nil
}

func (f *fakeStore) GetTask(ctx context.Context, taskID string) (store.Task, error) {
	if f.getTaskFn != nil {
		return f.getTaskFn(ctx, taskID)
	}
	return store.Task{}, sql.ErrNoRows
}

func (f *fakeStore) ListTasks(ctx context.Context, filter store.TaskFilter) ([]store.Task, error) {
	if f.listTasksFn != nil {
		return f.listTasksFn(ctx, filter)
	}
	return nil, nil
}

func (f *fakeStore) TransitionTask(ctx context.Context, taskID string, expected store.TaskStatus, patch store.TaskPatch) (store.Task, bool, error) {
	return store.Task{}, false, sql.ErrNoRows
}

func (f *fakeStore) UpdateTaskStage(ctx context.Context, taskID, stage string) (store.Task, error) {
	return store.Task{}, sql.ErrNoRows
}

func (f *fakeStore) DeleteTask(ctx context.Context, taskID string) error { return nil }

func (f *fakeStore) CountTasksByStatus(ctx context.Context, filter store.TaskFilter) (map[store.TaskStatus]int, error) {
	return map[store.TaskStatus]int{}, nil
}

func (f *fakeStore) GetClientRequest(ctx context.Context, requestID string) (store.ClientRequest, error) {
	return store.ClientRequest{}, sql.ErrNoRows
}

func (f *fakeStore) ListClientRequests(ctx context.Context, status store.RequestStatus) ([]store.ClientRequest, error) {
	return nil, nil
}

func (f *fakeStore) InsertComment(ctx context.Context, comment store.Comment) (store.Comment, error) {
	return comment, nil
}

func (f *fakeStore) ListComments(ctx context.Context, taskID string) ([]store.Comment, error) {
	return nil, nil
}

func (f *fakeStore) SoftDeleteComment(ctx context.Context, taskID, commentID string) (bool, error) {
	return false, nil
}

func (f *fakeStore) InsertAttachment(ctx context.Context, attachment store.Attachment) (store.Attachment, error) {
	return attachment, nil
}

func (f *fakeStore) ListAttachments(ctx context.Context, taskID string) ([]store.Attachment, error) {
	return nil, nil
}

func (f *fakeStore) SoftDeleteAttachment(ctx context.Context, taskID, attachmentID string) (bool, error) {
	return false, nil
}

func (f *fakeStore) AppendActivity(ctx context.Context, entry store.ActivityLogEntry) (store.ActivityLogEntry, error) {
	f.activity = append(f.activity, entry)
	return entry, nil
}

func (f *fakeStore) ListEntityActivity(ctx context.Context, entityKind, entityID string, limit int) ([]store.ActivityLogEntry, error) {
	return nil, nil
}

func (f *fakeStore) ListRecentActivity(ctx context.Context, limit int) ([]store.ActivityLogEntry, error) {
	return nil, nil
}

func (f *fakeStore) UpsertUser(ctx context.Context, user store.User) error {
	if f.upsertUserFn != nil {
		if err := f.upsertUserFn(ctx, user); err != nil {
			return err
		}
	}
	f.usersByID[user.ID] = user
	if user.Email != "" {
		f.usersByEmail[user.Email] = user
	}
	return nil
}

func (f *fakeStore) GetUser(ctx context.Context, userID string) (store.User, error) {
	user, ok := f.usersByID[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	user, ok := f.usersByEmail[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeStore) SetUserPassword(ctx context.Context, userID, passwordHash string) error {
	user, ok := f.usersByID[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	f.usersByID[userID] = user
	if user.Email != "" {
		f.usersByEmail[user.Email] = user
	}
	return nil
}

func newTestService(fs *fakeStore) *Service {
	engine := workflow.NewEngine(fs, notify.NewActivityRecorder(fs), nil, nil, workflow.RevisionPolicy{Cap: 3})
	return NewService(ServiceOptions{
		Store:       fs,
		Engine:      engine,
		Accounts:    authpw.NewService(fs),
		TokenSecret: "test-secret",
	})
}

func issueToken(t *testing.T, svc *Service, userID, name, role string) string {
	t.Helper()
	token, err := svc.IssueToken(context.Background(), userID, name, role, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response %q: %v", rr.Body.String(), err)
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore()), "*")

	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/health", "", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if payload := decodeResponse(t, rr); payload["ok"] != true {
		t.Fatalf("expected ok=true, got %v", payload["ok"])
	}
}

func TestReadyEndpointReportsDatabaseFailure(t *testing.T) {
	fs := newFakeStore()
	fs.pingFn = func(context.Context) error { return errors.New("connection refused") }
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/ready", "", "")

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
	if payload := decodeResponse(t, rr); payload["status"] != "not_ready" {
		t.Fatalf("expected status not_ready, got %v", payload["status"])
	}
}

func TestProtectedRouteWithoutBearerReturnsUnauthorized(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore()), "*")

	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/tasks", "", "")

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload := decodeResponse(t, rr); payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected code UNAUTHORIZED, got %v", payload["code"])
	}
}

func TestProtectedRouteWithGarbageBearerReturnsUnauthorized(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore()), "*")

	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/tasks", "definitely-not-a-token", "")

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestDevTokenGrantsBoardAccess(t *testing.T) {
	fs := newFakeStore()
	fs.listTasksFn = func(context.Context, store.TaskFilter) ([]store.Task, error) {
		return []store.Task{
			{ID: "tsk_1", Title: "Shoot product photos", Status: store.StatusInProgress, RevisionCount: 1},
			{ID: "tsk_2", Title: "Homepage mockups", Status: store.StatusRevisionRequested, RevisionCount: 4},
		}, nil
	}
	server := NewHTTPServer(newTestService(fs), "*")

	rr := doJSON(t, server.Handler(), http.MethodPost, "/api/auth/dev-token",
		"", `{"userId":"usr_maya","name":"Maya","role":"lead"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	token, _ := decodeResponse(t, rr)["token"].(string)
	if token == "" {
		t.Fatalf("expected token in response")
	}

	rr = doJSON(t, server.Handler(), http.MethodGet, "/api/tasks", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var payload struct {
		Tasks []TaskView `json:"tasks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse tasks: %v", err)
	}
	if len(payload.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(payload.Tasks))
	}
	if payload.Tasks[0].NeedsEscalation {
		t.Fatalf("task under the revision cap must not flag escalation")
	}
	if !payload.Tasks[1].NeedsEscalation {
		t.Fatalf("task past the revision cap must flag escalation")
	}

	if _, ok := fs.usersByID["usr_maya"]; !ok {
		t.Fatalf("expected authenticated request to upsert the caller into the directory")
	}
}

func TestDevTokenRequiresUserID(t *testing.T) {
	server := NewHTTPServer(newTestService(newFakeStore()), "*")

	rr := doJSON(t, server.Handler(), http.MethodPost, "/api/auth/dev-token", "", `{"name":"Maya"}`)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rr.Code)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := issueToken(t, svc, "usr_maya", "Maya", "lead")

	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/tasks/tsk_missing", token, "")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload := decodeResponse(t, rr); payload["code"] != "NOT_FOUND" {
		t.Fatalf("expected code NOT_FOUND, got %v", payload["code"])
	}
}

func TestCreateTaskRejectsClientRole(t *testing.T) {
	svc := newTestService(newFakeStore())
	server := NewHTTPServer(svc, "*")
	token := issueToken(t, svc, "usr_client", "Acme", "client")

	rr := doJSON(t, server.Handler(), http.MethodPost, "/api/tasks", token, `{"title":"Sneaky direct task"}`)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateTaskValidatesTitle(t *testing.T) {
	svc := newTestService(newFakeStore())
	server := NewHTTPServer(svc, "*")
	token := issueToken(t, svc, "usr_maya", "Maya", "lead")

	rr := doJSON(t, server.Handler(), http.MethodPost, "/api/tasks", token, `{"title":"   "}`)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload := decodeResponse(t, rr); payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected code VALIDATION_ERROR, got %v", payload["code"])
	}
}

func TestCreateTaskRecordsActivity(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := issueToken(t, svc, "usr_maya", "Maya", "lead")

	rr := doJSON(t, server.Handler(), http.MethodPost, "/api/tasks", token,
		`{"title":"Edit launch video","department":"video","priority":"high"}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var task TaskView
	if err := json.Unmarshal(rr.Body.Bytes(), &task); err != nil {
		t.Fatalf("parse task: %v", err)
	}
	if task.Status != store.StatusNew {
		t.Fatalf("expected new task in status new, got %s", task.Status)
	}
	if task.CreatorID != "usr_maya" {
		t.Fatalf("expected creator usr_maya, got %s", task.CreatorID)
	}

	found := false
	for _, entry := range fs.activity {
		if entry.Action == "task.created" && entry.EntityID == task.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a task.created activity entry, got %+v", fs.activity)
	}
}

func TestCreateTaskRejectsPastDeadline(t *testing.T) {
	svc := newTestService(newFakeStore())
	server := NewHTTPServer(svc, "*")
	token := issueToken(t, svc, "usr_maya", "Maya", "lead")

	past := time.Now().Add(-48 * time.Hour).Format(time.RFC3339)
	rr := doJSON(t, server.Handler(), http.MethodPost, "/api/tasks", token,
		`{"title":"Retouch album","deadline":"`+past+`"}`)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload := decodeResponse(t, rr); payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected code VALIDATION_ERROR, got %v", payload["code"])
	}
}

func TestOpenViewSubscribesBeforeInitialFetch(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	hub := feed.NewHub(client, "studioflow.test")

	fs := newFakeStore()
	subscribersAtFetch := -1
	fs.listTasksFn = func(context.Context, store.TaskFilter) ([]store.Task, error) {
		subscribersAtFetch = hub.Subscribers()
		return nil, nil
	}
	svc := NewService(ServiceOptions{Store: fs, Hub: hub})

	_, closeView, err := svc.OpenView(context.Background(), store.TaskFilter{})
	if err != nil {
		t.Fatalf("OpenView() error = %v", err)
	}
	defer closeView()

	if subscribersAtFetch != 1 {
		t.Fatalf("expected the feed subscription registered before the initial fetch, got %d subscribers", subscribersAtFetch)
	}
}

func TestBoardExportForbiddenForClients(t *testing.T) {
	svc := newTestService(newFakeStore())
	server := NewHTTPServer(svc, "*")
	token := issueToken(t, svc, "usr_client", "Acme", "client")

	rr := doJSON(t, server.Handler(), http.MethodGet, "/api/board/export?format=csv", token, "")

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestLoginVerifiesPassword(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	accounts := authpw.NewService(fs)
	if _, err := accounts.Register(context.Background(), authpw.RegisterRequest{
		Email:       "maya@studio.test",
		Password:    "correct-horse",
		DisplayName: "Maya",
		Role:        "lead",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	rr := doJSON(t, server.Handler(), http.MethodPost, "/api/auth/login",
		"", `{"email":"maya@studio.test","password":"correct-horse"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("expected token in login response")
	}
	user, _ := payload["user"].(map[string]any)
	if user["role"] != "lead" {
		t.Fatalf("expected role lead, got %v", user["role"])
	}

	rr = doJSON(t, server.Handler(), http.MethodGet, "/api/tasks", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected login token to authorize requests, got %d", rr.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")

	accounts := authpw.NewService(fs)
	if _, err := accounts.Register(context.Background(), authpw.RegisterRequest{
		Email:       "maya@studio.test",
		Password:    "correct-horse",
		DisplayName: "Maya",
		Role:        "lead",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	rr := doJSON(t, server.Handler(), http.MethodPost, "/api/auth/login",
		"", `{"email":"maya@studio.test","password":"wrong"}`)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload := decodeResponse(t, rr); payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("expected code UNAUTHORIZED, got %v", payload["code"])
	}
}

func TestRegisterEndpointRequiresAdmin(t *testing.T) {
	svc := newTestService(newFakeStore())
	server := NewHTTPServer(svc, "*")
	token := issueToken(t, svc, "usr_maya", "Maya", "lead")

	rr := doJSON(t, server.Handler(), http.MethodPost, "/api/auth/register", token,
		`{"email":"new@studio.test","password":"longenough","displayName":"New Hire","role":"member"}`)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestRegisterEndpointCreatesAccount(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)
	server := NewHTTPServer(svc, "*")
	token := issueToken(t, svc, "usr_admin", "Admin", "admin")

	rr := doJSON(t, server.Handler(), http.MethodPost, "/api/auth/register", token,
		`{"email":"new@studio.test","password":"longenough","displayName":"New Hire","role":"member"}`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	if payload["email"] != "new@studio.test" {
		t.Fatalf("expected email echoed back, got %v", payload["email"])
	}
	if _, ok := fs.usersByEmail["new@studio.test"]; !ok {
		t.Fatalf("expected account stored by email")
	}
}
