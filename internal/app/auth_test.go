package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoginCookieRidesAlong(t *testing.T) {
	t.Parallel()

	var seenCookie string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "tok-1", Path: "/"})
	})
	mux.HandleFunc("GET /api/sessions/", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("sessionid"); err == nil {
			seenCookie = ck.Value
		}
		_, _ = w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	ctx := context.Background()
	if err := c.Login(ctx, Credentials{Email: "x@example.com", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := c.ListSessions(ctx, ModeRegular); err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if seenCookie != "tok-1" {
		t.Fatalf("auth cookie not carried: %q", seenCookie)
	}
}
