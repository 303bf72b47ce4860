package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"studioflow/api/internal/store"
)

func setupStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreWithClient(client), mr
}

func TestSaveAndLookupSession(t *testing.T) {
	rs, _ := setupStore(t)
	ctx := context.Background()

	user := store.User{ID: "usr_maya", DisplayName: "Maya Lin", Role: "lead"}
	if err := rs.Save(ctx, "tok_1", user, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := rs.Lookup(ctx, "tok_1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != "usr_maya" || got.DisplayName != "Maya Lin" || got.Role != "lead" {
		t.Fatalf("unexpected session user: %+v", got)
	}
}

func TestLookupUnknownSession(t *testing.T) {
	rs, _ := setupStore(t)

	if _, err := rs.Lookup(context.Background(), "tok_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSaveRejectsExpiredDeadline(t *testing.T) {
	rs, _ := setupStore(t)

	err := rs.Save(context.Background(), "tok_stale", store.User{ID: "usr_x"}, time.Now().Add(-time.Minute))
	if err == nil {
		t.Fatal("expected error for deadline in the past")
	}
}

func TestSessionExpiresWithToken(t *testing.T) {
	rs, mr := setupStore(t)
	ctx := context.Background()

	if err := rs.Save(ctx, "tok_short", store.User{ID: "usr_x"}, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := rs.Lookup(ctx, "tok_short"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound after expiry", err)
	}
}

func TestRevokeSession(t *testing.T) {
	rs, _ := setupStore(t)
	ctx := context.Background()

	if err := rs.Save(ctx, "tok_1", store.User{ID: "usr_maya"}, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := rs.Revoke(ctx, "tok_1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := rs.Lookup(ctx, "tok_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound after revoke", err)
	}

	// Revoking an already absent session is not an error.
	if err := rs.Revoke(ctx, "tok_1"); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
}
