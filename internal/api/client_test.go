package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cookies := NewCookieStore(filepath.Join(t.TempDir(), ".cookies.dat"))
	if err := cookies.Save("auth=authcookie_test-token"); err != nil {
		t.Fatal(err)
	}
	return NewClient(srv.URL, "Spectre/2.0", 5*time.Second, cookies), srv
}

func TestGetUserSendsHeaders(t *testing.T) {
	var gotUA, gotCookie, gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCookie = r.Header.Get("Cookie")
		gotPath = r.URL.Path
		w.Write([]byte(`{"id":"usr_1","displayName":"Alice"}`))
	}))

	user, err := client.GetUser(context.Background(), "usr_1")
	if err != nil {
		t.Fatal(err)
	}
	if user.DisplayName != "Alice" {
		t.Fatalf("displayName = %q", user.DisplayName)
	}
	if gotUA != "Spectre/2.0" {
		t.Fatalf("User-Agent = %q", gotUA)
	}
	if gotCookie != "auth=authcookie_test-token" {
		t.Fatalf("Cookie = %q", gotCookie)
	}
	if gotPath != "/users/usr_1" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestUnauthorizedSurfacesAsNoCookie(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))

	_, err := client.ListFriends(context.Background())
	if !errors.Is(err, ErrNoCookie) {
		t.Fatalf("err = %v, want ErrNoCookie", err)
	}
}

func TestListFriends(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/user/friends" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("offline") != "false" {
			t.Errorf("offline = %q", r.URL.Query().Get("offline"))
		}
		w.Write([]byte(`[{"id":"usr_1"},{"id":"usr_2"}]`))
	}))

	friends, err := client.ListFriends(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(friends) != 2 || friends[1].ID != "usr_2" {
		t.Fatalf("friends = %+v", friends)
	}
}

func TestGetInstanceEscapesLocation(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`{"id":"12345","worldId":"wrld_a","n_users":8}`))
	}))

	inst, err := client.GetInstance(context.Background(), "wrld_a:12345~region(eu)")
	if err != nil {
		t.Fatal(err)
	}
	if inst.UserCount != 8 {
		t.Fatalf("n_users = %d", inst.UserCount)
	}
	if gotPath != "/instances/wrld_a:12345~region%28eu%29" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestServerErrorIsNotNoCookie(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.GetCurrentUser(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNoCookie) {
		t.Fatal("500 mapped to ErrNoCookie")
	}
}
