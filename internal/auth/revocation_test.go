package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/rising-bsm/rising/internal/auth"
	_ "github.com/rising-bsm/rising/testing"
)

func TestRevokeThenIsRevoked(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	registry := auth.NewRevocationRegistry(client, true, nil)
	ctx := context.Background()

	token := "header.payload.signature"
	if registry.IsRevoked(ctx, token) {
		t.Fatalf("fresh token should not be revoked")
	}
	if err := registry.Revoke(ctx, token, time.Now().Add(time.Hour), "logout"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !registry.IsRevoked(ctx, token) {
		t.Fatalf("token should be revoked after Revoke")
	}
	if registry.IsRevoked(ctx, "some.other.token") {
		t.Fatalf("unrelated token should not be revoked")
	}
}

func TestRevokeExpiredTokenIsNoop(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	registry := auth.NewRevocationRegistry(client, true, nil)
	ctx := context.Background()

	if err := registry.Revoke(ctx, "stale.token", time.Now().Add(-time.Minute), "logout"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected no denylist entry for an already-expired token, got %v", mr.Keys())
	}
}

func TestRevocationEntryExpiresWithToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	registry := auth.NewRevocationRegistry(client, true, nil)
	ctx := context.Background()

	token := "short.lived.token"
	if err := registry.Revoke(ctx, token, time.Now().Add(time.Minute), "logout"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !registry.IsRevoked(ctx, token) {
		t.Fatalf("token should be revoked")
	}

	mr.FastForward(2 * time.Minute)
	if registry.IsRevoked(ctx, token) {
		t.Fatalf("denylist entry should expire with the token")
	}
}

func TestBackendDownFailClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	registry := auth.NewRevocationRegistry(client, true, nil)
	mr.Close()

	if !registry.IsRevoked(context.Background(), "any.token") {
		t.Fatalf("fail-closed registry should treat tokens as revoked when the backend is down")
	}
}

func TestBackendDownFailOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	registry := auth.NewRevocationRegistry(client, false, nil)
	mr.Close()

	if registry.IsRevoked(context.Background(), "any.token") {
		t.Fatalf("fail-open registry should let tokens through when the backend is down")
	}
}
