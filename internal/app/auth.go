package app

import (
	"context"
	"net/http"
)

// Auth endpoints are a thin pass-through: the backend sets a session cookie on
// login, and the client's cookie jar carries it on every later call.

type Credentials struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Client) Signup(ctx context.Context, creds Credentials) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/signup/", creds, nil, nil)
}

func (c *Client) Login(ctx context.Context, creds Credentials) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/login/", creds, nil, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/logout/", map[string]string{}, nil, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.doJSON(ctx, http.MethodPost, "/api/auth/forgot-password/", body, nil, nil)
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	body := map[string]string{"token": token, "password": password}
	return c.doJSON(ctx, http.MethodPost, "/api/auth/reset-password/", body, nil, nil)
}

func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/auth/delete-account/", nil, nil, nil)
}
