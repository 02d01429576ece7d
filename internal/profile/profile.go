// Package profile reads the customer's email address from the voice platform's
// customer profile service.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const emailPath = "/v2/accounts/~current/settings/Profile.email"

// EmailPermission is the consent scope needed to read the email address
const EmailPermission = "alexa::profile:email:read"

var (
	// ErrPermissionDenied means the user has not granted the email permission
	ErrPermissionDenied = errors.New("profile email permission denied")
	// ErrNoEmail means the service answered but had no address for the user
	ErrNoEmail = errors.New("profile has no email")
)

// EmailFetcher reads a user's email address
type EmailFetcher interface {
	Email(ctx context.Context, apiEndpoint, apiAccessToken string) (string, error)
}

// Client calls the customer profile API
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

var _ EmailFetcher = (*Client)(nil)

// NewClient creates a client. A nil httpClient uses http.DefaultClient as the transport base.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, timeout: 5 * time.Second}
}

// Email fetches the address using the per-request access token
func (c *Client) Email(ctx context.Context, apiEndpoint, apiAccessToken string) (string, error) {
	if apiAccessToken == "" {
		return "", fmt.Errorf("%w: no api access token", ErrPermissionDenied)
	}
	if apiEndpoint == "" {
		return "", errors.New("profile api endpoint is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// oauth2.NewClient picks the base transport from the context
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: apiAccessToken,
		TokenType:   "Bearer",
	}))

	url := strings.TrimRight(apiEndpoint, "/") + emailPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build profile request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("profile request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("failed to read profile response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrPermissionDenied
	case resp.StatusCode == http.StatusNoContent:
		return "", ErrNoEmail
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("profile service returned status %d", resp.StatusCode)
	}

	email := strings.TrimSpace(string(body))
	// The service answers with a JSON string; tolerate a bare value too
	var quoted string
	if err := json.Unmarshal(body, &quoted); err == nil {
		email = strings.TrimSpace(quoted)
	}
	if email == "" {
		return "", ErrNoEmail
	}
	return email, nil
}
