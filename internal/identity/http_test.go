package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ignite/notify-dispatch/internal/pkg/httpretry"
)

func newTestDirectory(t *testing.T, h http.HandlerFunc) *HTTPDirectory {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	d := NewHTTPDirectory(HTTPConfig{BaseURL: srv.URL + "/", APIKey: "secret"})
	return d.WithClient(httpretry.NewRetryClient(srv.Client(), 1).WithBackoff(time.Millisecond, time.Millisecond))
}

func TestHTTPDirectory_GetUser(t *testing.T) {
	d := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/user_1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"user_1","first_name":"Ada","email_addresses":[{"email_address":"ada@example.com"}]}`))
	})

	u, err := d.GetUser(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Email != "ada@example.com" || u.FirstName != "Ada" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestHTTPDirectory_NotFound(t *testing.T) {
	d := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	if _, err := d.GetUser(context.Background(), "gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestHTTPDirectory_Unavailable(t *testing.T) {
	d := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if _, err := d.GetUser(context.Background(), "u"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic()
	if _, err := s.GetUser(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	s.Down = true
	if _, err := s.GetUser(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
}
