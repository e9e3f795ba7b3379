package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/maintsync/maintsync/internal/errs"
	"github.com/maintsync/maintsync/internal/model"
	"github.com/maintsync/maintsync/internal/syncq"
)

func writeToken(t *testing.T, path string) {
	t.Helper()
	data, err := json.Marshal(tokenFile{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestClient_ApplyCarriesIdempotencyKeyAndBearer(t *testing.T) {
	t.Parallel()

	var gotKey, gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tokenPath := filepath.Join(t.TempDir(), "token.json")
	writeToken(t, tokenPath)
	c := New(srv.URL, tokenPath, time.Second, zap.NewNop())

	// The queue normally assigns ids; tests set one through the codec.
	id := uuid.Must(uuid.NewV4())
	act := withID(t, &syncq.CreateOrder{Order: model.WorkOrder{ID: "OS-10032026-1"}}, id)

	if err := c.CreateOrder(context.Background(), act); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if gotKey != id.String() {
		t.Fatalf("Idempotency-Key=%q, want action id", gotKey)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("Authorization=%q", gotAuth)
	}
	if gotPath != "/orders" {
		t.Fatalf("path=%q", gotPath)
	}
}

// withID round-trips the action through the envelope codec to set its id,
// the same way a reloaded queue does.
func withID(t *testing.T, act *syncq.CreateOrder, id uuid.UUID) *syncq.CreateOrder {
	t.Helper()
	payload, err := json.Marshal(act)
	if err != nil {
		t.Fatal(err)
	}
	blob, err := json.Marshal([]map[string]any{{"id": id, "kind": act.ActionKind(), "payload": json.RawMessage(payload)}})
	if err != nil {
		t.Fatal(err)
	}
	actions, err := syncq.UnmarshalActions(blob)
	if err != nil {
		t.Fatal(err)
	}
	return actions[0].(*syncq.CreateOrder)
}

func TestClient_ErrorMapping(t *testing.T) {
	t.Parallel()

	status := http.StatusConflict
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "order already closed"})
	}))
	defer srv.Close()

	tokenPath := filepath.Join(t.TempDir(), "token.json")
	writeToken(t, tokenPath)
	c := New(srv.URL, tokenPath, time.Second, zap.NewNop())
	act := &syncq.DeleteOrder{OrderID: "OS-10032026-1", ActorID: 1}

	err := c.DeleteOrder(context.Background(), act)
	if !errors.Is(err, errs.ErrRemoteRejected) {
		t.Fatalf("4xx should map to ErrRemoteRejected, got %v", err)
	}

	status = http.StatusUnauthorized
	err = c.DeleteOrder(context.Background(), act)
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("401 should map to ErrUnauthorized, got %v", err)
	}

	status = http.StatusInternalServerError
	err = c.DeleteOrder(context.Background(), act)
	if err == nil || errors.Is(err, errs.ErrRemoteRejected) {
		t.Fatalf("5xx should be a transient error, got %v", err)
	}
}

func TestClient_MissingOrExpiredToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be sent without a token")
	}))
	defer srv.Close()

	c := New(srv.URL, filepath.Join(t.TempDir(), "token.json"), time.Second, zap.NewNop())
	err := c.DeleteOrder(context.Background(), &syncq.DeleteOrder{OrderID: "x"})
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("missing token: got %v", err)
	}

	expired := filepath.Join(t.TempDir(), "token.json")
	data, _ := json.Marshal(tokenFile{AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Minute)})
	if err := os.WriteFile(expired, data, 0o600); err != nil {
		t.Fatal(err)
	}
	c = New(srv.URL, expired, time.Second, zap.NewNop())
	err = c.DeleteOrder(context.Background(), &syncq.DeleteOrder{OrderID: "x"})
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expired token: got %v", err)
	}
}

func TestClient_LoginStoresToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Errorf("path=%q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "opaque-session-token"})
	}))
	defer srv.Close()

	tokenPath := filepath.Join(t.TempDir(), "token.json")
	c := New(srv.URL, tokenPath, time.Second, zap.NewNop())
	if err := c.Login(context.Background(), 1, "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	tok, err := c.loadToken()
	if err != nil {
		t.Fatalf("loadToken after login: %v", err)
	}
	if tok != "opaque-session-token" {
		t.Fatalf("token=%q", tok)
	}
}
