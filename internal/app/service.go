package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"studioflow/api/internal/auth"
	"studioflow/api/internal/authpw"
	"studioflow/api/internal/email"
	"studioflow/api/internal/export"
	"studioflow/api/internal/feed"
	"studioflow/api/internal/gate"
	"studioflow/api/internal/logging"
	"studioflow/api/internal/objectstore"
	"studioflow/api/internal/rbac"
	"studioflow/api/internal/realtime"
	"studioflow/api/internal/search"
	sessionstore "studioflow/api/internal/session"
	"studioflow/api/internal/store"
	"studioflow/api/internal/util"
	"studioflow/api/internal/workflow"
)

// Session is the authenticated caller for one request.
type Session struct {
	UserID   string
	UserName string
	Role     rbac.Role
	TokenID  string
}

// Actor converts the session into the identity the workflow engine
// operates on behalf of.
func (s Session) Actor() workflow.Actor {
	return workflow.Actor{ID: s.UserID, Role: s.Role}
}

type dataStore interface {
	Ping(ctx context.Context) error

	InsertTask(ctx context.Context, task store.Task) (store.Task, error)
	GetTask(ctx context.Context, taskID string) (store.Task, error)
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]store.Task, error)
	UpdateTaskStage(ctx context.Context, taskID, stage string) (store.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	CountTasksByStatus(ctx context.Context, filter store.TaskFilter) (map[store.TaskStatus]int, error)

	GetClientRequest(ctx context.Context, requestID string) (store.ClientRequest, error)
	ListClientRequests(ctx context.Context, status store.RequestStatus) ([]store.ClientRequest, error)

	InsertComment(ctx context.Context, comment store.Comment) (store.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]store.Comment, error)
	SoftDeleteComment(ctx context.Context, taskID, commentID string) (bool, error)

	InsertAttachment(ctx context.Context, attachment store.Attachment) (store.Attachment, error)
	ListAttachments(ctx context.Context, taskID string) ([]store.Attachment, error)
	SoftDeleteAttachment(ctx context.Context, taskID, attachmentID string) (bool, error)

	AppendActivity(ctx context.Context, entry store.ActivityLogEntry) (store.ActivityLogEntry, error)
	ListEntityActivity(ctx context.Context, entityKind, entityID string, limit int) ([]store.ActivityLogEntry, error)
	ListRecentActivity(ctx context.Context, limit int) ([]store.ActivityLogEntry, error)

	UpsertUser(ctx context.Context, user store.User) error
	GetUser(ctx context.Context, userID string) (store.User, error)
}

// Service wires the workflow engine, the request gate, and the
// supporting stores behind one API surface.
type Service struct {
	store       dataStore
	engine      *workflow.Engine
	gate        *gate.Gate
	hub         *feed.Hub
	events      feed.Publisher
	search      *search.Service
	objects     *objectstore.Client
	accounts    *authpw.Service
	sessions    *sessionstore.RedisStore
	mailer      *email.Service
	exporter    *export.Service
	tokenSecret []byte
}

type ServiceOptions struct {
	Store       dataStore
	Engine      *workflow.Engine
	Gate        *gate.Gate
	Hub         *feed.Hub
	Events      feed.Publisher
	Search      *search.Service
	Objects     *objectstore.Client
	Accounts    *authpw.Service
	Sessions    *sessionstore.RedisStore
	Mailer      *email.Service
	Exporter    *export.Service
	TokenSecret string
}

func NewService(opts ServiceOptions) *Service {
	return &Service{
		store:       opts.Store,
		engine:      opts.Engine,
		gate:        opts.Gate,
		hub:         opts.Hub,
		events:      opts.Events,
		search:      opts.Search,
		objects:     opts.Objects,
		accounts:    opts.Accounts,
		sessions:    opts.Sessions,
		mailer:      opts.Mailer,
		exporter:    opts.Exporter,
		tokenSecret: []byte(opts.TokenSecret),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// SessionFromToken validates a bearer token and upserts the user so the
// directory stays current with the identity provider.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken(s.tokenSecret, token)
	if err != nil {
		return Session{}, err
	}
	if s.sessions != nil && claims.Jti != "" {
		if _, err := s.sessions.Lookup(ctx, claims.Jti); err != nil {
			if errors.Is(err, sessionstore.ErrNotFound) {
				return Session{}, auth.ErrInvalidToken
			}
			logging.With("app").WithError(err).Warn("session lookup failed, falling back to token claims")
		}
	}
	session := Session{
		UserID:   claims.Sub,
		UserName: claims.Name,
		Role:     rbac.Normalize(claims.Role),
		TokenID:  claims.Jti,
	}
	if err := s.store.UpsertUser(ctx, store.User{
		ID:          session.UserID,
		DisplayName: session.UserName,
		Role:        string(session.Role),
	}); err != nil {
		logging.With("app").WithError(err).Warn("upsert user from token")
	}
	return session, nil
}

// IssueToken signs a token for the given identity. Exposed for local
// development where no identity provider runs in front of the API.
func (s *Service) IssueToken(ctx context.Context, userID, name, role string, ttl time.Duration) (string, error) {
	expiresAt := time.Now().Add(ttl)
	claims := auth.Claims{
		Sub:  userID,
		Name: name,
		Role: string(rbac.Normalize(role)),
		Jti:  util.NewID("tok"),
		Exp:  expiresAt.Unix(),
	}
	token, err := auth.IssueToken(s.tokenSecret, claims)
	if err != nil {
		return "", err
	}
	if s.sessions != nil {
		user := store.User{ID: userID, DisplayName: name, Role: claims.Role}
		if err := s.sessions.Save(ctx, claims.Jti, user, expiresAt); err != nil {
			return "", fmt.Errorf("save session: %w", err)
		}
	}
	return token, nil
}

// SignIn authenticates by email and password and issues a bearer token.
func (s *Service) SignIn(ctx context.Context, email, password string, ttl time.Duration) (string, store.User, error) {
	if s.accounts == nil {
		return "", store.User{}, authpw.ErrInvalidCredentials
	}
	user, err := s.accounts.SignIn(ctx, email, password)
	if err != nil {
		return "", store.User{}, err
	}
	token, err := s.IssueToken(ctx, user.ID, user.DisplayName, user.Role, ttl)
	if err != nil {
		return "", store.User{}, err
	}
	return token, user, nil
}

// Register creates a new account. Admin only.
func (s *Service) Register(ctx context.Context, session Session, req authpw.RegisterRequest) (store.User, error) {
	if session.Role != rbac.RoleAdmin {
		return store.User{}, workflow.NewForbiddenError("only admins may create accounts")
	}
	if s.accounts == nil {
		return store.User{}, fmt.Errorf("account service not configured")
	}
	user, err := s.accounts.Register(ctx, req)
	if err != nil {
		return store.User{}, workflow.NewValidationError(err.Error())
	}
	s.appendActivity(ctx, session, "user.registered", "user", user.ID, user.Email)
	return user, nil
}

// ChangePassword updates the caller's own password.
func (s *Service) ChangePassword(ctx context.Context, session Session, current, next string) error {
	if s.accounts == nil {
		return fmt.Errorf("account service not configured")
	}
	if err := s.accounts.ChangePassword(ctx, session.UserID, current, next); err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return err
		}
		return workflow.NewValidationError(err.Error())
	}
	return nil
}

// Logout revokes the caller's session. Tokens issued without a session
// store cannot be revoked and simply age out.
func (s *Service) Logout(ctx context.Context, session Session) error {
	if s.sessions == nil || session.TokenID == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, session.TokenID)
}

// ExportBoard renders the task board as a downloadable report. Staff only.
func (s *Service) ExportBoard(ctx context.Context, session Session, req export.Request) (*export.Result, error) {
	if !rbac.IsStaff(session.Role) {
		return nil, workflow.NewForbiddenError("clients may not export the board")
	}
	if s.exporter == nil {
		return nil, fmt.Errorf("export service not configured")
	}
	return s.exporter.Export(ctx, req)
}

// TaskView is a task plus state derived from the revision policy.
type TaskView struct {
	store.Task
	NeedsEscalation bool `json:"needsEscalation"`
}

func (s *Service) taskView(task store.Task) TaskView {
	return TaskView{Task: task, NeedsEscalation: s.engine.Revisions().NeedsEscalation(task)}
}

// CreateTaskInput is a task created directly by staff, outside the
// client request gate.
type CreateTaskInput struct {
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Department    store.Department `json:"department"`
	Priority      store.Priority   `json:"priority"`
	ProjectID     string           `json:"projectId"`
	ClientID      string           `json:"clientId"`
	Deadline      *time.Time       `json:"deadline"`
	ScheduledDate *time.Time       `json:"scheduledDate"`
}

func (s *Service) CreateTask(ctx context.Context, session Session, input CreateTaskInput) (TaskView, error) {
	if !rbac.IsStaff(session.Role) {
		return TaskView{}, workflow.NewForbiddenError("clients may not create tasks directly")
	}
	if strings.TrimSpace(input.Title) == "" {
		return TaskView{}, workflow.NewValidationError("title is required")
	}
	if input.Deadline != nil && input.Deadline.Before(time.Now()) {
		return TaskView{}, workflow.NewValidationError("deadline must not be in the past")
	}
	priority := input.Priority
	if priority == "" {
		priority = store.PriorityMedium
	}

	task, err := s.store.InsertTask(ctx, store.Task{
		ID:            util.NewID("tsk"),
		Title:         strings.TrimSpace(input.Title),
		Description:   input.Description,
		Department:    input.Department,
		Status:        store.StatusNew,
		Priority:      priority,
		CreatorID:     session.UserID,
		ProjectID:     input.ProjectID,
		ClientID:      input.ClientID,
		Deadline:      input.Deadline,
		ScheduledDate: input.ScheduledDate,
	})
	if err != nil {
		return TaskView{}, workflow.Classify("insert task", err)
	}

	s.appendActivity(ctx, session, "task.created", "task", task.ID, task.Title)
	s.publish(ctx, feed.ChangeEvent{Entity: feed.EntityTask, Op: feed.OpInsert, Task: task, OccurredAt: time.Now()})
	s.indexTask(task)
	return s.taskView(task), nil
}

func (s *Service) GetTask(ctx context.Context, taskID string) (TaskView, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return TaskView{}, workflow.Classify("get task", err)
	}
	return s.taskView(task), nil
}

func (s *Service) ListTasks(ctx context.Context, filter store.TaskFilter) ([]TaskView, error) {
	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, workflow.Classify("list tasks", err)
	}
	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, s.taskView(task))
	}
	return views, nil
}

// BoardSummary is the kanban header: per-status counts for a filter.
func (s *Service) BoardSummary(ctx context.Context, filter store.TaskFilter) (map[store.TaskStatus]int, error) {
	counts, err := s.store.CountTasksByStatus(ctx, filter)
	if err != nil {
		return nil, workflow.Classify("count tasks", err)
	}
	return counts, nil
}

func (s *Service) AssignTask(ctx context.Context, session Session, taskID, assigneeID string) (TaskView, error) {
	task, err := s.engine.Assign(ctx, taskID, session.Actor(), assigneeID)
	if err != nil {
		return TaskView{}, err
	}
	s.indexTask(task)
	s.notifyAssignment(ctx, task)
	return s.taskView(task), nil
}

// notifyAssignment mails the assignee. Best effort, never blocks the
// transition that triggered it.
func (s *Service) notifyAssignment(ctx context.Context, task store.Task) {
	if s.mailer == nil || !s.mailer.IsConfigured() || task.AssigneeID == "" {
		return
	}
	user, err := s.store.GetUser(ctx, task.AssigneeID)
	if err != nil || user.Email == "" {
		return
	}
	go func() {
		if err := s.mailer.SendAssignmentEmail(user.Email, user.DisplayName, task.Title, string(task.Department), ""); err != nil {
			logging.With("app").WithField("taskId", task.ID).WithError(err).Warn("assignment email failed")
		}
	}()
}

func (s *Service) AdvanceTask(ctx context.Context, session Session, taskID string, target store.TaskStatus) (TaskView, error) {
	task, err := s.engine.Advance(ctx, taskID, session.Actor(), target)
	if err != nil {
		return TaskView{}, err
	}
	s.indexTask(task)
	return s.taskView(task), nil
}

// RequestRevision sends submitted work back with a note. The returned
// signal is non-nil once the task crosses the advisory revision cap.
func (s *Service) RequestRevision(ctx context.Context, session Session, taskID, note string) (TaskView, *workflow.EscalationSignal, error) {
	task, signal, err := s.engine.RequestRevision(ctx, taskID, session.Actor(), note)
	if err != nil {
		return TaskView{}, nil, err
	}
	s.indexTask(task)
	return s.taskView(task), signal, nil
}

func (s *Service) CancelTask(ctx context.Context, session Session, taskID, reason string) (TaskView, error) {
	task, err := s.engine.Cancel(ctx, taskID, session.Actor(), reason)
	if err != nil {
		return TaskView{}, err
	}
	s.indexTask(task)
	return s.taskView(task), nil
}

// UpdateTaskStage moves the free-form board stage without touching the
// lifecycle status.
func (s *Service) UpdateTaskStage(ctx context.Context, session Session, taskID, stage string) (TaskView, error) {
	if !rbac.IsStaff(session.Role) {
		return TaskView{}, workflow.NewForbiddenError("clients may not move board cards")
	}
	task, err := s.store.UpdateTaskStage(ctx, taskID, stage)
	if err != nil {
		return TaskView{}, workflow.Classify("update task stage", err)
	}
	s.publish(ctx, feed.ChangeEvent{Entity: feed.EntityTask, Op: feed.OpUpdate, Task: task, OccurredAt: time.Now()})
	return s.taskView(task), nil
}

func (s *Service) DeleteTask(ctx context.Context, session Session, taskID string) error {
	if session.Role != rbac.RoleAdmin {
		return workflow.NewForbiddenError("only admins may delete tasks")
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return workflow.Classify("get task", err)
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return workflow.Classify("delete task", err)
	}
	s.appendActivity(ctx, session, "task.deleted", "task", taskID, task.Title)
	s.publish(ctx, feed.ChangeEvent{Entity: feed.EntityTask, Op: feed.OpDelete, Task: task, OccurredAt: time.Now()})
	if s.search != nil {
		s.search.DeleteTask(taskID)
	}
	return nil
}

// Client request gate

func (s *Service) SubmitRequest(ctx context.Context, session Session, input gate.SubmitInput) (store.ClientRequest, error) {
	if session.Role == rbac.RoleClient {
		// Clients can only file requests as themselves.
		input.ClientID = session.UserID
	}
	request, err := s.gate.Submit(ctx, input)
	if err != nil {
		return store.ClientRequest{}, err
	}
	s.appendActivity(ctx, session, "request.submitted", "request", request.ID, request.Title)
	s.indexRequest(request)
	return request, nil
}

func (s *Service) ListRequests(ctx context.Context, session Session, status store.RequestStatus) ([]store.ClientRequest, error) {
	requests, err := s.store.ListClientRequests(ctx, status)
	if err != nil {
		return nil, workflow.Classify("list client requests", err)
	}
	if session.Role != rbac.RoleClient {
		return requests, nil
	}
	own := make([]store.ClientRequest, 0, len(requests))
	for _, request := range requests {
		if request.ClientID == session.UserID {
			own = append(own, request)
		}
	}
	return own, nil
}

func (s *Service) GetRequest(ctx context.Context, session Session, requestID string) (store.ClientRequest, error) {
	request, err := s.store.GetClientRequest(ctx, requestID)
	if err != nil {
		return store.ClientRequest{}, workflow.Classify("get client request", err)
	}
	if session.Role == rbac.RoleClient && request.ClientID != session.UserID {
		return store.ClientRequest{}, workflow.NewForbiddenError("request belongs to another client")
	}
	return request, nil
}

func (s *Service) ApproveRequest(ctx context.Context, session Session, requestID string, opts gate.ApproveOptions) (TaskView, store.ClientRequest, error) {
	task, request, err := s.gate.Approve(ctx, requestID, session.Actor(), opts)
	if err != nil {
		return TaskView{}, store.ClientRequest{}, err
	}
	s.indexTask(task)
	s.indexRequest(request)
	return s.taskView(task), request, nil
}

func (s *Service) RejectRequest(ctx context.Context, session Session, requestID, reason string) (store.ClientRequest, error) {
	request, err := s.gate.Reject(ctx, requestID, session.Actor(), reason)
	if err != nil {
		return store.ClientRequest{}, err
	}
	s.indexRequest(request)
	return request, nil
}

// Comments

func (s *Service) AddComment(ctx context.Context, session Session, taskID, body string) (store.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return store.Comment{}, workflow.NewValidationError("comment body is required")
	}
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return store.Comment{}, workflow.Classify("get task", err)
	}
	comment, err := s.store.InsertComment(ctx, store.Comment{
		ID:       util.NewID("cmt"),
		TaskID:   taskID,
		AuthorID: session.UserID,
		Body:     body,
	})
	if err != nil {
		return store.Comment{}, workflow.Classify("insert comment", err)
	}
	s.appendActivity(ctx, session, "comment.added", "task", taskID, "")
	return comment, nil
}

func (s *Service) ListComments(ctx context.Context, taskID string) ([]store.Comment, error) {
	comments, err := s.store.ListComments(ctx, taskID)
	if err != nil {
		return nil, workflow.Classify("list comments", err)
	}
	return comments, nil
}

func (s *Service) DeleteComment(ctx context.Context, session Session, taskID, commentID string) error {
	if !rbac.IsStaff(session.Role) {
		return workflow.NewForbiddenError("clients may not delete comments")
	}
	ok, err := s.store.SoftDeleteComment(ctx, taskID, commentID)
	if err != nil {
		return workflow.Classify("delete comment", err)
	}
	if !ok {
		return workflow.Classify("delete comment", sql.ErrNoRows)
	}
	s.appendActivity(ctx, session, "comment.deleted", "task", taskID, commentID)
	return nil
}

// Attachments

// UploadAttachment streams the body to the object store first; the
// metadata row is only written if the blob landed.
func (s *Service) UploadAttachment(ctx context.Context, session Session, taskID, fileName string, body io.Reader, size int64, contentType string) (store.Attachment, error) {
	if s.objects == nil {
		return store.Attachment{}, workflow.NewValidationError("attachment storage is not configured")
	}
	if strings.TrimSpace(fileName) == "" {
		return store.Attachment{}, workflow.NewValidationError("file name is required")
	}
	if _, err := s.store.GetTask(ctx, taskID); err != nil {
		return store.Attachment{}, workflow.Classify("get task", err)
	}

	id := util.NewID("att")
	key := fmt.Sprintf("%s/%s/%s", taskID, id, fileName)
	if err := s.objects.Put(ctx, key, body, size, contentType); err != nil {
		return store.Attachment{}, workflow.Classify("store attachment", err)
	}

	attachment, err := s.store.InsertAttachment(ctx, store.Attachment{
		ID:         id,
		TaskID:     taskID,
		UploaderID: session.UserID,
		FileName:   fileName,
		ObjectKey:  key,
		SizeBytes:  size,
	})
	if err != nil {
		return store.Attachment{}, workflow.Classify("insert attachment", err)
	}
	s.appendActivity(ctx, session, "attachment.added", "task", taskID, fileName)
	return attachment, nil
}

func (s *Service) ListAttachments(ctx context.Context, taskID string) ([]store.Attachment, error) {
	attachments, err := s.store.ListAttachments(ctx, taskID)
	if err != nil {
		return nil, workflow.Classify("list attachments", err)
	}
	return attachments, nil
}

// AttachmentURL returns a short-lived download link for one attachment.
func (s *Service) AttachmentURL(ctx context.Context, taskID, attachmentID string) (string, error) {
	if s.objects == nil {
		return "", workflow.NewValidationError("attachment storage is not configured")
	}
	attachments, err := s.store.ListAttachments(ctx, taskID)
	if err != nil {
		return "", workflow.Classify("list attachments", err)
	}
	for _, attachment := range attachments {
		if attachment.ID == attachmentID {
			return s.objects.PresignedGet(ctx, attachment.ObjectKey, attachment.FileName)
		}
	}
	return "", workflow.Classify("attachment url", sql.ErrNoRows)
}

func (s *Service) DeleteAttachment(ctx context.Context, session Session, taskID, attachmentID string) error {
	if !rbac.IsStaff(session.Role) {
		return workflow.NewForbiddenError("clients may not delete attachments")
	}
	var objectKey string
	if attachments, err := s.store.ListAttachments(ctx, taskID); err == nil {
		for _, a := range attachments {
			if a.ID == attachmentID {
				objectKey = a.ObjectKey
			}
		}
	}

	ok, err := s.store.SoftDeleteAttachment(ctx, taskID, attachmentID)
	if err != nil {
		return workflow.Classify("delete attachment", err)
	}
	if !ok {
		return workflow.Classify("delete attachment", sql.ErrNoRows)
	}
	s.appendActivity(ctx, session, "attachment.deleted", "task", taskID, attachmentID)

	// The metadata row is the record of the deletion; the blob itself is
	// reclaimed best effort.
	if s.objects != nil && objectKey != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.objects.Remove(ctx, objectKey); err != nil {
				logging.With("app").WithField("objectKey", objectKey).WithError(err).Warn("remove attachment blob")
			}
		}()
	}
	return nil
}

// Activity and search

func (s *Service) TaskActivity(ctx context.Context, taskID string, limit int) ([]store.ActivityLogEntry, error) {
	entries, err := s.store.ListEntityActivity(ctx, "task", taskID, limit)
	if err != nil {
		return nil, workflow.Classify("list task activity", err)
	}
	return entries, nil
}

func (s *Service) RecentActivity(ctx context.Context, limit int) ([]store.ActivityLogEntry, error) {
	entries, err := s.store.ListRecentActivity(ctx, limit)
	if err != nil {
		return nil, workflow.Classify("list recent activity", err)
	}
	return entries, nil
}

func (s *Service) Search(ctx context.Context, session Session, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	if session.Role == rbac.RoleClient {
		q.IsClient = true
		q.ClientID = session.UserID
	}
	return s.search.Search(q)
}

// OpenView subscribes a live filtered view to the change feed. The
// returned closer tears down both the subscription and the merge loop.
func (s *Service) OpenView(ctx context.Context, filter store.TaskFilter) (*realtime.View, func(), error) {
	view := realtime.NewView(s.store, filter)

	// Subscribe before the initial fetch. Events published while the
	// fetch runs are superseded by the cache replace instead of lost.
	viewCtx, cancel := context.WithCancel(context.Background())
	if s.hub != nil {
		sub := s.hub.Subscribe(filter)
		go func() {
			defer sub.Close()
			view.Run(viewCtx, sub)
		}()
	}

	if err := view.Resync(ctx); err != nil {
		cancel()
		return nil, nil, workflow.Classify("view resync", err)
	}
	return view, cancel, nil
}

func (s *Service) appendActivity(ctx context.Context, session Session, action, entityKind, entityID, detail string) {
	if _, err := s.store.AppendActivity(ctx, store.ActivityLogEntry{
		ActorID:    session.UserID,
		Action:     action,
		EntityKind: entityKind,
		EntityID:   entityID,
		Detail:     detail,
	}); err != nil {
		logging.With("app").WithError(err).WithField("action", action).Error("append activity")
	}
}

func (s *Service) publish(ctx context.Context, event feed.ChangeEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		logging.With("app").WithError(err).Warn("publish change event")
	}
}

func (s *Service) indexTask(task store.Task) {
	if s.search != nil {
		s.search.IndexTask(task)
	}
}

func (s *Service) indexRequest(request store.ClientRequest) {
	if s.search != nil {
		s.search.IndexRequest(request)
	}
}
