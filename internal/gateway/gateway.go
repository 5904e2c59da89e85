package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kavia-common/tierdash-client/internal/api"
)

// Client exposes the backend operations over an api.Client.
type Client struct {
	api *api.Client
}

// New creates a gateway over the given api client.
func New(apiClient *api.Client) *Client {
	return &Client{api: apiClient}
}

// SetToken installs the bearer token used by authenticated operations.
func (c *Client) SetToken(token string) {
	c.api.SetToken(token)
}

// ClearToken removes the bearer token.
func (c *Client) ClearToken() {
	c.api.ClearToken()
}

// Login exchanges credentials for a bearer token. The endpoint consumes a
// urlencoded form whose credential field is named "username" on the wire,
// though it carries the email.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	body, err := c.api.Request(ctx, http.MethodPost, "/auth/login", form, nil)
	if err != nil {
		return nil, err
	}

	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &tok, nil
}

// SignupRequest is the signup payload.
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	PackageTier Tier   `json:"package_tier,omitempty"`
}

// Signup registers a new user and returns a bearer token.
func (c *Client) Signup(ctx context.Context, email, password string, tier Tier) (*TokenResponse, error) {
	req := SignupRequest{Email: email, Password: password, PackageTier: tier}

	body, err := c.api.Post(ctx, "/auth/signup", req)
	if err != nil {
		return nil, err
	}

	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &tok, nil
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	body, err := c.api.Get(ctx, "/dashboard/me")
	if err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &user, nil
}

// Content fetches tier-tailored content.
func (c *Client) Content(ctx context.Context) (*Content, error) {
	body, err := c.api.Get(ctx, "/api/content")
	if err != nil {
		return nil, err
	}

	var content Content
	if err := json.Unmarshal(body, &content); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &content, nil
}

// GetPlan fetches the account's current plan.
func (c *Client) GetPlan(ctx context.Context) (*Plan, error) {
	body, err := c.api.Get(ctx, "/account/plan")
	if err != nil {
		return nil, err
	}

	var plan Plan
	if err := json.Unmarshal(body, &plan); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &plan, nil
}

// UpdatePlan changes the account's subscription tier and returns the
// resulting plan.
func (c *Client) UpdatePlan(ctx context.Context, tier Tier) (*Plan, error) {
	req := map[string]Tier{"package_tier": tier}

	body, err := c.api.Put(ctx, "/account/plan", req)
	if err != nil {
		return nil, err
	}

	var plan Plan
	if err := json.Unmarshal(body, &plan); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &plan, nil
}

// Health probes the backend root endpoint.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.api.Get(ctx, "/")
	return err
}
