// Package client is a Go SDK for the society management API.
//
// A Client holds one caller's credentials. Authenticated calls that fail with
// 401 trigger a single token refresh, shared by all concurrent callers, and
// are retried once.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 20 * time.Second

// ErrNotAuthenticated is returned when an authenticated call has no credentials.
var ErrNotAuthenticated = errors.New("client: not authenticated")

// Client calls the API.
type Client struct {
	http    *resty.Client
	creds   credentialBox
	store   CredentialStore
	refresh singleflight.Group
}

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	creds      Credentials
	store      CredentialStore
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient uses hc for transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithCredentials starts the client with previously saved credentials.
func WithCredentials(creds Credentials) Option {
	return func(o *options) { o.creds = creds }
}

// WithCredentialStore persists rotated credentials.
func WithCredentialStore(store CredentialStore) Option {
	return func(o *options) { o.store = store }
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	rc := resty.New()
	if o.httpClient != nil {
		rc = resty.NewWithClient(o.httpClient)
	}
	rc.SetBaseURL(baseURL).
		SetTimeout(o.timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "societyapi-go-client/1.0")

	c := &Client{http: rc, store: o.store}
	c.creds.set(o.creds)
	return c
}

// Credentials returns the current credentials.
func (c *Client) Credentials() Credentials {
	return c.creds.get()
}

func (c *Client) rotate(creds Credentials) error {
	c.creds.set(creds)
	if c.store != nil {
		if err := c.store.Save(creds); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}
	}
	return nil
}

func apiError(resp *resty.Response) error {
	if e, ok := resp.Error().(*APIError); ok && e != nil && e.Message != "" {
		e.StatusCode = resp.StatusCode()
		return e
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: http.StatusText(resp.StatusCode())}
}

// call runs one request. token is empty for public endpoints.
func (c *Client) call(ctx context.Context, method, path, token string, query url.Values, body, out any) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx).SetError(&APIError{})
	if token != "" {
		req.SetAuthToken(token)
	}
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) public(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.call(ctx, method, path, "", nil, body, out)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp)
	}
	return nil
}

// authed runs an authenticated request, refreshing the access token once on 401.
func (c *Client) authed(ctx context.Context, method, path string, query url.Values, body, out any) (*resty.Response, error) {
	token := c.creds.get().AccessToken
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	resp, err := c.call(ctx, method, path, token, query, body, out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		if rerr := c.refreshFrom(ctx, token); rerr != nil {
			return nil, apiError(resp)
		}
		resp, err = c.call(ctx, method, path, c.creds.get().AccessToken, query, body, out)
		if err != nil {
			return nil, err
		}
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return resp, nil
}

// refreshFrom rotates the token pair unless another caller already replaced stale.
// Concurrent refreshes of the same refresh token collapse into one request.
func (c *Client) refreshFrom(ctx context.Context, stale string) error {
	creds := c.creds.get()
	if creds.AccessToken != stale {
		return nil
	}
	if creds.RefreshToken == "" {
		return ErrNotAuthenticated
	}
	_, err, _ := c.refresh.Do(creds.RefreshToken, func() (any, error) {
		if c.creds.get().AccessToken != stale {
			return nil, nil
		}
		var next Credentials
		resp, err := c.call(ctx, http.MethodPost, "/api/auth/refresh", "", nil,
			map[string]string{"refresh_token": creds.RefreshToken}, &next)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, apiError(resp)
		}
		return nil, c.rotate(next)
	})
	return err
}

// Refresh rotates the token pair now.
func (c *Client) Refresh(ctx context.Context) error {
	return c.refreshFrom(ctx, c.creds.get().AccessToken)
}

// Signup registers a new user.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	var out SignupResult
	if err := c.public(ctx, http.MethodPost, "/api/auth/signup", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates and stores the issued credentials.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var out struct {
		Credentials
		User User `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.public(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return nil, err
	}
	if err := c.rotate(out.Credentials); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Logout revokes both tokens and forgets them.
func (c *Client) Logout(ctx context.Context) error {
	creds := c.creds.get()
	if _, err := c.authed(ctx, http.MethodPost, "/api/auth/logout", nil,
		map[string]string{"refresh_token": creds.RefreshToken}, nil); err != nil {
		return err
	}
	return c.rotate(Credentials{})
}

// Me returns the authenticated caller.
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var out Me
	if _, err := c.authed(ctx, http.MethodGet, "/api/auth/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSocieties returns every society. No credentials are needed.
func (c *Client) ListSocieties(ctx context.Context) ([]Society, error) {
	var out []Society
	if err := c.public(ctx, http.MethodGet, "/api/societies", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSociety creates a society. Only developers may.
func (c *Client) CreateSociety(ctx context.Context, s Society) (*Society, error) {
	var out Society
	if _, err := c.authed(ctx, http.MethodPost, "/api/societies", nil, s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JoinSociety requests membership of another society.
func (c *Client) JoinSociety(ctx context.Context, societyID, role string) (*Membership, error) {
	var out Membership
	body := map[string]string{"society_id": societyID, "role": role}
	if _, err := c.authed(ctx, http.MethodPost, "/api/memberships", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetPrimaryMembership makes the membership the caller's primary one.
func (c *Client) SetPrimaryMembership(ctx context.Context, membershipID string) error {
	_, err := c.authed(ctx, http.MethodPut, "/api/memberships/"+url.PathEscape(membershipID)+"/primary", nil, nil, nil)
	return err
}

// ListMemberships lists a society's memberships, optionally filtered by approval status.
func (c *Client) ListMemberships(ctx context.Context, societyID, status string) ([]Membership, error) {
	var out []Membership
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if _, err := c.authed(ctx, http.MethodGet, "/api/societies/"+url.PathEscape(societyID)+"/memberships", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ApproveMembership approves a pending membership.
func (c *Client) ApproveMembership(ctx context.Context, membershipID string) (*Membership, error) {
	var out Membership
	if _, err := c.authed(ctx, http.MethodPost, "/api/memberships/"+url.PathEscape(membershipID)+"/approve", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RejectMembership rejects a pending membership with a reason.
func (c *Client) RejectMembership(ctx context.Context, membershipID, reason string) (*Membership, error) {
	var out Membership
	body := map[string]string{"reason": reason}
	if _, err := c.authed(ctx, http.MethodPost, "/api/memberships/"+url.PathEscape(membershipID)+"/reject", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser deletes a user. societyID names the tenant the deletion is authorized in.
func (c *Client) DeleteUser(ctx context.Context, userID, societyID string) error {
	q := url.Values{}
	if societyID != "" {
		q.Set("society_id", societyID)
	}
	_, err := c.authed(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(userID), q, nil, nil)
	return err
}

// SetGlobalRole grants a global role, or revokes it when role is empty.
func (c *Client) SetGlobalRole(ctx context.Context, userID, role string) (*User, error) {
	var out User
	body := map[string]string{"global_role": role}
	if _, err := c.authed(ctx, http.MethodPut, "/api/users/"+url.PathEscape(userID)+"/global-role", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpsertScope creates or updates a scope override.
func (c *Client) UpsertScope(ctx context.Context, o ScopeOverride) (*ScopeRecord, error) {
	var out ScopeRecord
	if _, err := c.authed(ctx, http.MethodPut, "/api/scopes", nil, o, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateIssue reports an issue in a society.
func (c *Client) CreateIssue(ctx context.Context, societyID string, in NewIssue) (*Issue, error) {
	var out Issue
	if _, err := c.authed(ctx, http.MethodPost, "/api/societies/"+url.PathEscape(societyID)+"/issues", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListIssues lists a society's issues, optionally filtered by status.
func (c *Client) ListIssues(ctx context.Context, societyID, status string) ([]Issue, error) {
	var out []Issue
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if _, err := c.authed(ctx, http.MethodGet, "/api/societies/"+url.PathEscape(societyID)+"/issues", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetIssue fetches one issue.
func (c *Client) GetIssue(ctx context.Context, id string) (*Issue, error) {
	var out Issue
	if _, err := c.authed(ctx, http.MethodGet, "/api/issues/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateIssue applies a partial update. A nil value clears the field.
func (c *Client) UpdateIssue(ctx context.Context, id string, changes map[string]any) (*Issue, error) {
	var out Issue
	if _, err := c.authed(ctx, http.MethodPatch, "/api/issues/"+url.PathEscape(id), nil, changes, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteIssue deletes an issue.
func (c *Client) DeleteIssue(ctx context.Context, id string) error {
	_, err := c.authed(ctx, http.MethodDelete, "/api/issues/"+url.PathEscape(id), nil, nil, nil)
	return err
}

func (q AuditQuery) values() url.Values {
	v := url.Values{}
	if q.EntityType != "" {
		v.Set("entity_type", q.EntityType)
	}
	if q.Action != "" {
		v.Set("action", q.Action)
	}
	if q.UserID != "" {
		v.Set("user_id", q.UserID)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

// ListAuditLogs returns one page of a society's audit trail.
func (c *Client) ListAuditLogs(ctx context.Context, societyID string, q AuditQuery) (*AuditPage, error) {
	var out AuditPage
	if _, err := c.authed(ctx, http.MethodGet, "/api/societies/"+url.PathEscape(societyID)+"/audit-logs", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportAuditLogs writes the xlsx export of a society's audit trail to w.
func (c *Client) ExportAuditLogs(ctx context.Context, societyID string, q AuditQuery, w io.Writer) (int64, error) {
	resp, err := c.authed(ctx, http.MethodGet, "/api/societies/"+url.PathEscape(societyID)+"/audit-logs/export", q.values(), nil, nil)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(resp.Body())
	return int64(n), err
}
