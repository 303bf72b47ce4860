package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"studioflow/api/internal/authpw"
	"studioflow/api/internal/export"
	"studioflow/api/internal/gate"
	"studioflow/api/internal/logging"
	"studioflow/api/internal/search"
	"studioflow/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/auth/dev-token", s.handleDevToken).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireSession)

	api.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks", s.handleCreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", s.handleGetTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", s.handleDeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id}/assign", s.handleAssignTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/advance", s.handleAdvanceTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/request-revision", s.handleRequestRevision).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/cancel", s.handleCancelTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/stage", s.handleUpdateStage).Methods(http.MethodPut)

	api.HandleFunc("/tasks/{id}/comments", s.handleListComments).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}/comments", s.handleAddComment).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/comments/{commentId}", s.handleDeleteComment).Methods(http.MethodDelete)

	api.HandleFunc("/tasks/{id}/attachments", s.handleListAttachments).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}/attachments", s.handleUploadAttachment).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/attachments/{attachmentId}/url", s.handleAttachmentURL).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}/attachments/{attachmentId}", s.handleDeleteAttachment).Methods(http.MethodDelete)

	api.HandleFunc("/tasks/{id}/activity", s.handleTaskActivity).Methods(http.MethodGet)
	api.HandleFunc("/activity", s.handleRecentActivity).Methods(http.MethodGet)

	api.HandleFunc("/requests", s.handleSubmitRequest).Methods(http.MethodPost)
	api.HandleFunc("/requests", s.handleListRequests).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id}", s.handleGetRequest).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id}/approve", s.handleApproveRequest).Methods(http.MethodPost)
	api.HandleFunc("/requests/{id}/reject", s.handleRejectRequest).Methods(http.MethodPost)

	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/change-password", s.handleChangePassword).Methods(http.MethodPost)

	api.HandleFunc("/board/summary", s.handleBoardSummary).Methods(http.MethodGet)
	api.HandleFunc("/board/export", s.handleExportBoard).Methods(http.MethodGet)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)

	return s.withMiddleware(r)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{"status": "error", "error": err.Error()}
	}
	if s.service.sessions != nil {
		checks["redis"] = map[string]any{"status": "ok"}
		if err := s.service.sessions.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["redis"] = map[string]any{"status": "error", "error": err.Error()}
		}
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// handleDevToken signs a token for local development; a real deployment
// fronts the API with an identity provider instead.
func (s *HTTPServer) handleDevToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
		Name   string `json:"name"`
		Role   string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if strings.TrimSpace(body.UserID) == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId is required")
		return
	}
	token, err := s.service.IssueToken(r.Context(), body.UserID, body.Name, body.Role, 12*time.Hour)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Token issue failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	token, user, err := s.service.SignIn(r.Context(), body.Email, body.Password, 12*time.Hour)
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user": map[string]any{
			"id":          user.ID,
			"displayName": user.DisplayName,
			"email":       user.Email,
			"role":        user.Role,
		},
	})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Logout(r.Context(), sessionFrom(r)); err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
		Role        string `json:"role"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	user, err := s.service.Register(r.Context(), sessionFrom(r), authpw.RegisterRequest{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
		Role:        body.Role,
	})
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          user.ID,
		"displayName": user.DisplayName,
		"email":       user.Email,
		"role":        user.Role,
	})
}

func (s *HTTPServer) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if err := s.service.ChangePassword(r.Context(), sessionFrom(r), body.CurrentPassword, body.NewPassword); err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleExportBoard(w http.ResponseWriter, r *http.Request) {
	format := export.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = export.FormatCSV
	}
	result, err := s.service.ExportBoard(r.Context(), sessionFrom(r), export.Request{
		Title:  "Board Report",
		Format: format,
		Filter: filterFromQuery(r),
	})
	if err != nil {
		writeMapped(w, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// Sessions

type sessionKey struct{}

func (s *HTTPServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token")
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func sessionFrom(r *http.Request) Session {
	session, _ := r.Context().Value(sessionKey{}).(Session)
	return session
}

// Tasks

func (s *HTTPServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.service.ListTasks(r.Context(), filterFromQuery(r))
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *HTTPServer) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var input CreateTaskInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	task, err := s.service.CreateTask(r.Context(), sessionFrom(r), input)
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *HTTPServer) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.GetTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTask(r.Context(), sessionFrom(r), mux.Vars(r)["id"]); err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleAssignTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AssigneeID string `json:"assigneeId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	task, err := s.service.AssignTask(r.Context(), sessionFrom(r), mux.Vars(r)["id"], body.AssigneeID)
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleAdvanceTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Target string `json:"target"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	task, err := s.service.AdvanceTask(r.Context(), sessionFrom(r), mux.Vars(r)["id"], store.TaskStatus(body.Target))
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleRequestRevision(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Note string `json:"note"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	task, signal, err := s.service.RequestRevision(r.Context(), sessionFrom(r), mux.Vars(r)["id"], body.Note)
	if err != nil {
		writeMapped(w, err)
		return
	}
	response := map[string]any{"task": task}
	if signal != nil {
		response["escalation"] = signal
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	task, err := s.service.CancelTask(r.Context(), sessionFrom(r), mux.Vars(r)["id"], body.Reason)
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) handleUpdateStage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Stage string `json:"stage"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	task, err := s.service.UpdateTaskStage(r.Context(), sessionFrom(r), mux.Vars(r)["id"], body.Stage)
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Comments

func (s *HTTPServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.service.ListComments(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

func (s *HTTPServer) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Body string `json:"body"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	comment, err := s.service.AddComment(r.Context(), sessionFrom(r), mux.Vars(r)["id"], body.Body)
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *HTTPServer) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.service.DeleteComment(r.Context(), sessionFrom(r), vars["id"], vars["commentId"]); err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Attachments

func (s *HTTPServer) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	attachments, err := s.service.ListAttachments(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attachments": attachments})
}

func (s *HTTPServer) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "multipart file field is required")
		return
	}
	defer file.Close()

	attachment, err := s.service.UploadAttachment(r.Context(), sessionFrom(r), mux.Vars(r)["id"],
		header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}

func (s *HTTPServer) handleAttachmentURL(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	url, err := s.service.AttachmentURL(r.Context(), vars["id"], vars["attachmentId"])
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

func (s *HTTPServer) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.service.DeleteAttachment(r.Context(), sessionFrom(r), vars["id"], vars["attachmentId"]); err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Activity

func (s *HTTPServer) handleTaskActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.TaskActivity(r.Context(), mux.Vars(r)["id"], intQuery(r, "limit", 50))
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

func (s *HTTPServer) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.RecentActivity(r.Context(), intQuery(r, "limit", 50))
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

// Client requests

func (s *HTTPServer) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ClientID    string     `json:"clientId"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Department  string     `json:"department"`
		Type        string     `json:"type"`
		DesiredDate *time.Time `json:"desiredDate"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	request, err := s.service.SubmitRequest(r.Context(), sessionFrom(r), gate.SubmitInput{
		ClientID:    body.ClientID,
		Title:       body.Title,
		Description: body.Description,
		Department:  store.Department(body.Department),
		Type:        body.Type,
		DesiredDate: body.DesiredDate,
	})
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

func (s *HTTPServer) handleListRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := s.service.ListRequests(r.Context(), sessionFrom(r), store.RequestStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (s *HTTPServer) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	request, err := s.service.GetRequest(r.Context(), sessionFrom(r), mux.Vars(r)["id"])
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (s *HTTPServer) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AssigneeID string `json:"assigneeId"`
		Priority   string `json:"priority"`
		ProjectID  string `json:"projectId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	task, request, err := s.service.ApproveRequest(r.Context(), sessionFrom(r), mux.Vars(r)["id"], gate.ApproveOptions{
		DefaultAssignee: body.AssigneeID,
		Priority:        store.Priority(body.Priority),
		ProjectID:       body.ProjectID,
	})
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task, "request": request})
}

func (s *HTTPServer) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	request, err := s.service.RejectRequest(r.Context(), sessionFrom(r), mux.Vars(r)["id"], body.Reason)
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

// Board, search, stream

func (s *HTTPServer) handleBoardSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := s.service.BoardSummary(r.Context(), filterFromQuery(r))
	if err != nil {
		writeMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	response := s.service.Search(r.Context(), sessionFrom(r), search.Query{
		Text:             q.Get("q"),
		FilterType:       search.ResultType(q.Get("type")),
		FilterDepartment: q.Get("department"),
		FilterStatus:     q.Get("status"),
		FilterProjectID:  q.Get("projectId"),
		Limit:            intQuery(r, "limit", 20),
		Offset:           intQuery(r, "offset", 0),
	})
	writeJSON(w, http.StatusOK, response)
}

// handleStream pushes board snapshots over server-sent events. Each
// message carries the full filtered task set; the view coalesces bursts
// so a slow client only ever sees the latest state.
func (s *HTTPServer) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAM_UNSUPPORTED", "Streaming not supported")
		return
	}

	view, closeView, err := s.service.OpenView(r.Context(), filterFromQuery(r))
	if err != nil {
		writeMapped(w, err)
		return
	}
	defer closeView()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSnapshot := func(tasks []store.Task) {
		payload, err := json.Marshal(map[string]any{"tasks": tasks})
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload)
		flusher.Flush()
	}
	writeSnapshot(view.Snapshot())

	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case tasks := <-view.Snapshots():
			writeSnapshot(tasks)
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// Middleware and helpers

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	log := logging.With("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
			return
		}

		started := time.Now()
		next.ServeHTTP(writer, r)

		log.WithFields(map[string]any{
			"requestId":  requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     writer.status,
			"durationMs": time.Since(started).Milliseconds(),
		}).Info("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func filterFromQuery(r *http.Request) store.TaskFilter {
	q := r.URL.Query()
	filter := store.TaskFilter{
		LeaderID:   q.Get("leaderId"),
		Department: store.Department(q.Get("department")),
		ProjectID:  q.Get("projectId"),
		AssigneeID: q.Get("assigneeId"),
	}
	for _, status := range q["status"] {
		filter.Statuses = append(filter.Statuses, store.TaskStatus(status))
	}
	return filter
}

func intQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"code": code, "error": message})
}

func writeMapped(w http.ResponseWriter, err error) {
	status, code, message := mapError(err)
	writeError(w, status, code, message)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
