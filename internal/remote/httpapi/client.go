// Package httpapi implements the remote authority over the backend's JSON API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/maintsync/maintsync/internal/errs"
	"github.com/maintsync/maintsync/internal/remote"
	"github.com/maintsync/maintsync/internal/syncq"
)

// Client talks to the work-order backend. Every replay request carries the
// action's unique id in an Idempotency-Key header; the backend dedupes on it,
// so a retry after a lost confirmation is safe.
type Client struct {
	base      string
	hc        *http.Client
	tokenPath string
	log       *zap.Logger
}

var _ remote.Authority = (*Client)(nil)

// New builds a client for the given base URL. The session token lives at
// tokenPath. A request that hangs longer than timeout counts as a failed
// replay; it must never block the synchronizer forever.
func New(baseURL, tokenPath string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:      baseURL,
		hc:        &http.Client{Timeout: timeout},
		tokenPath: tokenPath,
		log:       log,
	}
}

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login authenticates the device user and stores the session token.
func (c *Client) Login(ctx context.Context, userID int64, credential string) error {
	body, err := json.Marshal(map[string]any{"user_id": userID, "credential": credential})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return errs.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login: %s", readAPIError(resp.Body, resp.Status))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("login: decode response: %w", err)
	}
	return c.saveToken(out.Token)
}

// saveToken persists the token with its expiry read from the JWT claims.
// The signature is the server's concern; the client only needs exp.
func (c *Client) saveToken(token string) error {
	claims := jwt.RegisteredClaims{}
	exp := time.Now().Add(12 * time.Hour)
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if err := os.MkdirAll(filepath.Dir(c.tokenPath), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenFile{AccessToken: token, ExpiresAt: exp}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.tokenPath, data, 0o600)
}

func (c *Client) loadToken() (string, error) {
	b, err := os.ReadFile(c.tokenPath)
	if err != nil {
		return "", fmt.Errorf("%w: login required", errs.ErrUnauthorized)
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", fmt.Errorf("%w: token file corrupt", errs.ErrUnauthorized)
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", fmt.Errorf("%w: token expired", errs.ErrUnauthorized)
	}
	return tf.AccessToken, nil
}

// apply sends one action payload and maps the response to the replay error
// taxonomy: 401 unauthorized, other 4xx rejected (remote refuses the action),
// everything else transient.
func (c *Client) apply(ctx context.Context, method, path string, act syncq.Action) error {
	token, err := c.loadToken()
	if err != nil {
		return err
	}
	body, err := json.Marshal(act)
	if err != nil {
		return fmt.Errorf("encode %s: %w", act.ActionKind(), err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", act.ActionID().String())

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return errs.ErrUnauthorized
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg := readAPIError(resp.Body, resp.Status)
		c.log.Warn("replay rejected",
			zap.String("kind", string(act.ActionKind())),
			zap.String("action_id", act.ActionID().String()),
			zap.String("message", msg),
		)
		return fmt.Errorf("%w: %s", errs.ErrRemoteRejected, msg)
	default:
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
}

func readAPIError(r io.Reader, fallback string) string {
	var out struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&out); err == nil && out.Message != "" {
		return out.Message
	}
	return fallback
}

func (c *Client) CreateAccount(ctx context.Context, act *syncq.CreateAccount) error {
	return c.apply(ctx, http.MethodPost, "/users", act)
}

func (c *Client) UpdateAccount(ctx context.Context, act *syncq.UpdateAccount) error {
	return c.apply(ctx, http.MethodPut, fmt.Sprintf("/users/%d", act.Account.ID), act)
}

func (c *Client) DeleteAccount(ctx context.Context, act *syncq.DeleteAccount) error {
	return c.apply(ctx, http.MethodDelete, fmt.Sprintf("/users/%d", act.AccountID), act)
}

func (c *Client) CreateOrder(ctx context.Context, act *syncq.CreateOrder) error {
	return c.apply(ctx, http.MethodPost, "/orders", act)
}

func (c *Client) UpdateOrder(ctx context.Context, act *syncq.UpdateOrder) error {
	return c.apply(ctx, http.MethodPut, "/orders/"+act.Order.ID, act)
}

func (c *Client) DeleteOrder(ctx context.Context, act *syncq.DeleteOrder) error {
	return c.apply(ctx, http.MethodDelete, "/orders/"+act.OrderID, act)
}

func (c *Client) Transition(ctx context.Context, act *syncq.Transition) error {
	return c.apply(ctx, http.MethodPut, "/orders/"+act.OrderID+"/status", act)
}

func (c *Client) ApprovePreventive(ctx context.Context, act *syncq.ApprovePreventive) error {
	return c.apply(ctx, http.MethodPost, "/orders/"+act.OrderID+"/approve", act)
}

func (c *Client) SubmitCompletionChange(ctx context.Context, act *syncq.SubmitCompletionChange) error {
	return c.apply(ctx, http.MethodPost, "/orders/"+act.OrderID+"/completion-change", act)
}

func (c *Client) ResolveCompletionChange(ctx context.Context, act *syncq.ResolveCompletionChange) error {
	return c.apply(ctx, http.MethodPut, "/orders/"+act.OrderID+"/completion-change", act)
}
