package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/yourorg/stockcast/internal/domain"
)

const (
	pathLogin     = "/login"
	pathRegister  = "/register"
	pathLogout    = "/logout"
	pathDashboard = "/dashboard"
)

// Login submits the credentials as a multipart form. On success the backend
// sets the session cookie; no token is returned to the caller.
// A rejected login is an *AuthenticationError; transport failures stay *NetworkError.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) error {
	_, err := c.postForm(ctx, "login", pathLogin, []formField{
		{name: "store_id", value: creds.StoreID},
		{name: "password", value: creds.Password},
	}, nil)
	var herr *HTTPError
	if errors.As(err, &herr) {
		return &AuthenticationError{Err: herr}
	}
	return err
}

// Register creates a store account. It does not authenticate the caller.
func (c *Client) Register(ctx context.Context, creds domain.Credentials) error {
	_, err := c.postForm(ctx, "register", pathRegister, []formField{
		{name: "store_id", value: creds.StoreID},
		{name: "password", value: creds.Password},
	}, nil)
	var herr *HTTPError
	if errors.As(err, &herr) {
		return &RegistrationError{Err: herr}
	}
	return err
}

// Logout asks the backend to invalidate the session. Callers tear down local state regardless of the result.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.makeRequest(ctx, "logout", http.MethodGet, pathLogout, nil, nil)
	return err
}

// GetDashboardData requests a protected page. Success means the session cookie is valid.
// The body is opaque (HTML today) and returned as text.
func (c *Client) GetDashboardData(ctx context.Context) (string, error) {
	resp, err := c.makeRequest(ctx, "dashboard", http.MethodGet, pathDashboard, nil, nil)
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}
