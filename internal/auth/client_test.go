package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.Username != "alice" || req.Password != "secret" {
			t.Errorf("unexpected credentials: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(AuthResponse{Token: "tok-1"})
	}))
	defer srv.Close()

	store := &MemoryStore{}
	c := NewClient(srv.URL, store, nil)

	tok, err := c.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tok != "tok-1" || store.Token() != "tok-1" {
		t.Fatalf("token not stored: %q / %q", tok, store.Token())
	}
}

func TestRequestsCarryStoredToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token tok-7" {
			t.Errorf("unexpected authorization header %q", got)
		}
		_ = json.NewEncoder(w).Encode(Profile{Username: "alice", Email: "alice@example.com"})
	}))
	defer srv.Close()

	store := &MemoryStore{}
	_ = store.SetToken("tok-7")
	c := NewClient(srv.URL, store, nil)

	profile, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if profile.Username != "alice" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestMeNotAuthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, &MemoryStore{}, nil)
	if _, err := c.Me(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestLogoutClearsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/logout" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	store := &MemoryStore{}
	_ = store.SetToken("tok-9")
	c := NewClient(srv.URL, store, nil)

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if store.Token() != "" {
		t.Fatal("token should be cleared after logout")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	store := NewFileStore(path)

	if store.Token() != "" {
		t.Fatal("fresh store should be empty")
	}
	if err := store.SetToken("tok-42"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if store.Token() != "tok-42" {
		t.Fatalf("unexpected token %q", store.Token())
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if store.Token() != "" {
		t.Fatal("token should be gone after clear")
	}
	// Clearing twice is fine.
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestIdentity(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Username: "bob"}).SignedString([]byte("k"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	name, err := Identity(token)
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if name != "bob" {
		t.Fatalf("unexpected username %q", name)
	}

	if _, err := Identity("not-a-token"); err == nil {
		t.Fatal("expected parse error")
	}
}
