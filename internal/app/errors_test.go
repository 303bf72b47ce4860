package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"studioflow/api/internal/auth"
	"studioflow/api/internal/authpw"
	"studioflow/api/internal/workflow"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid transition",
			err:        &workflow.Error{Kind: workflow.KindInvalidTransition, Message: "no transition from done to new"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "INVALID_TRANSITION",
		},
		{
			name:       "forbidden",
			err:        workflow.NewForbiddenError("role client may not move submitted_for_review to approved"),
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "conflict",
			err:        workflow.NewConflictError("tsk_1"),
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
		},
		{
			name:       "already finalized",
			err:        &workflow.Error{Kind: workflow.KindAlreadyFinalized, Message: "request req_1 is already approved"},
			wantStatus: http.StatusConflict,
			wantCode:   "ALREADY_FINALIZED",
		},
		{
			name:       "validation",
			err:        workflow.NewValidationError("title is required"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "wrapped workflow error survives",
			err:        fmt.Errorf("approve request: %w", workflow.NewForbiddenError("nope")),
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "context deadline",
			err:        fmt.Errorf("get task: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "TIMEOUT",
		},
		{
			name:       "missing row",
			err:        fmt.Errorf("get task: %w", sql.ErrNoRows),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "invalid token",
			err:        auth.ErrInvalidToken,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "expired token",
			err:        auth.ErrExpiredToken,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "bad credentials",
			err:        authpw.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "unknown error",
			err:        errors.New("disk on fire"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "SERVER_ERROR",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code, _ := mapError(tc.err)
			if status != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, status)
			}
			if code != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, code)
			}
		})
	}
}

func TestMapErrorHidesInternalDetail(t *testing.T) {
	_, _, message := mapError(errors.New("pq: connection refused on 10.0.0.3"))
	if message != "Server error" {
		t.Fatalf("expected generic message, got %q", message)
	}
}
