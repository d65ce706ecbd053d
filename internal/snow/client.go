package snow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	userTable = "sys_user"
	roleTable = "sys_user_has_role"

	defaultPageSize = 1000
	defaultTimeout  = 30 * time.Second

	userFields = "sys_id,user_name,name,email,department,license_type,active,last_login_time,transaction_count,roles"
)

// Write result taxonomy shared with the orchestrator's task records.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// Config carries the instance connection settings.
type Config struct {
	BaseURL  string
	Username string
	Password string

	// AuthMode is "basic" (default) or "oauth".
	AuthMode     string
	ClientID     string
	ClientSecret string
	TokenURL     string

	PageSize int
	Timeout  time.Duration
}

// Client talks to one ServiceNow instance over the Table API.
type Client struct {
	baseURL    string
	username   string
	password   string
	basicAuth  bool
	pageSize   int
	httpClient *http.Client
}

// User is one row from the joined sys_user read. ServiceNow serializes every
// field as a string; parsing happens here so callers get typed values.
type User struct {
	SysID            string
	UserName         string
	Name             string
	Email            string
	Department       string
	LicenseType      string
	Active           bool
	LastLogin        string
	TransactionCount int
	Roles            []string
}

// WriteResult reports the outcome of one unit write.
type WriteResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// New builds a client for the configured instance.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("snow: SN_INSTANCE_URL is required")
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL:  base,
		pageSize: pageSize,
	}

	switch strings.ToLower(strings.TrimSpace(cfg.AuthMode)) {
	case "", "basic":
		if cfg.Username == "" || cfg.Password == "" {
			return nil, fmt.Errorf("snow: basic auth requires SN_USERNAME and SN_PASSWORD")
		}
		c.basicAuth = true
		c.username = cfg.Username
		c.password = cfg.Password
		c.httpClient = &http.Client{Timeout: timeout}
	case "oauth":
		if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.TokenURL == "" {
			return nil, fmt.Errorf("snow: oauth requires SN_CLIENT_ID, SN_CLIENT_SECRET and SN_TOKEN_URL")
		}
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		c.httpClient = cc.Client(context.Background())
		c.httpClient.Timeout = timeout
	default:
		return nil, fmt.Errorf("snow: unknown auth mode %q", cfg.AuthMode)
	}

	return c, nil
}

// ValidateSysID enforces the minimum plausible sys_id length before any write.
func ValidateSysID(sysID string) error {
	if len(strings.TrimSpace(sysID)) < 10 {
		return ErrInvalidSysID
	}
	return nil
}

// ListUsers pulls the complete user population, one page at a time. Pagination
// advances sysparm_offset by the page size and stops on the first short page.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	offset := 0
	for {
		rows, err := c.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			users = append(users, row.toUser())
		}
		if len(rows) < c.pageSize {
			return users, nil
		}
		offset += c.pageSize
	}
}

// SetUserInactive flips the account's active flag off.
func (c *Client) SetUserInactive(ctx context.Context, sysID string) (WriteResult, error) {
	if err := ValidateSysID(sysID); err != nil {
		return WriteResult{}, err
	}
	return c.patch(ctx, userTable, sysID, map[string]string{"active": "false"},
		fmt.Sprintf("user %s deactivated", sysID))
}

// RemoveRole deletes the user-role assignment rows for one role name.
func (c *Client) RemoveRole(ctx context.Context, sysID, role string) (WriteResult, error) {
	if err := ValidateSysID(sysID); err != nil {
		return WriteResult{}, err
	}
	role = strings.TrimSpace(role)
	if role == "" {
		return WriteResult{Status: StatusError, Message: "role name is empty"}, nil
	}

	ids, err := c.lookupRoleAssignments(ctx, sysID, role)
	if err != nil {
		return WriteResult{}, err
	}
	if len(ids) == 0 {
		return WriteResult{Status: StatusError, Message: fmt.Sprintf("role %s is not assigned to %s", role, sysID)}, nil
	}

	deleted := 0
	var lastErr string
	for _, id := range ids {
		if err := c.delete(ctx, roleTable, id); err != nil {
			lastErr = err.Error()
			continue
		}
		deleted++
	}
	switch {
	case deleted == len(ids):
		return WriteResult{Status: StatusSuccess, Message: fmt.Sprintf("removed role %s", role)}, nil
	case deleted > 0:
		return WriteResult{Status: StatusPartial, Message: fmt.Sprintf("removed %d of %d assignments of %s: %s", deleted, len(ids), role, lastErr)}, nil
	default:
		return WriteResult{Status: StatusError, Message: fmt.Sprintf("remove role %s: %s", role, lastErr)}, nil
	}
}

// SetLicenseTier rewrites the user's license tier field.
func (c *Client) SetLicenseTier(ctx context.Context, sysID, tier string) (WriteResult, error) {
	if err := ValidateSysID(sysID); err != nil {
		return WriteResult{}, err
	}
	tier = strings.TrimSpace(tier)
	if tier == "" {
		return WriteResult{Status: StatusError, Message: "license tier is empty"}, nil
	}
	return c.patch(ctx, userTable, sysID, map[string]string{"license_type": tier},
		fmt.Sprintf("user %s moved to %s tier", sysID, tier))
}

// userRow is the raw Table API shape: strings all the way down.
type userRow struct {
	SysID            string `json:"sys_id"`
	UserName         string `json:"user_name"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Department       string `json:"department"`
	LicenseType      string `json:"license_type"`
	Active           string `json:"active"`
	LastLoginTime    string `json:"last_login_time"`
	TransactionCount string `json:"transaction_count"`
	Roles            string `json:"roles"`
}

func (r userRow) toUser() User {
	u := User{
		SysID:       strings.TrimSpace(r.SysID),
		UserName:    strings.TrimSpace(r.UserName),
		Name:        strings.TrimSpace(r.Name),
		Email:       strings.TrimSpace(r.Email),
		Department:  strings.TrimSpace(r.Department),
		LicenseType: strings.TrimSpace(r.LicenseType),
		LastLogin:   strings.TrimSpace(r.LastLoginTime),
		Active:      strings.EqualFold(strings.TrimSpace(r.Active), "true"),
	}
	if n, err := strconv.Atoi(strings.TrimSpace(r.TransactionCount)); err == nil && n > 0 {
		u.TransactionCount = n
	}
	for _, role := range strings.Split(r.Roles, ",") {
		role = strings.TrimSpace(role)
		if role != "" {
			u.Roles = append(u.Roles, role)
		}
	}
	return u
}

func (c *Client) fetchPage(ctx context.Context, offset int) ([]userRow, error) {
	q := url.Values{}
	q.Set("sysparm_limit", strconv.Itoa(c.pageSize))
	q.Set("sysparm_offset", strconv.Itoa(offset))
	q.Set("sysparm_fields", userFields)

	body, err := c.do(ctx, http.MethodGet, c.tableURL(userTable, "")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Result []userRow `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("snow: decode user page at offset %d: %w", offset, err)
	}
	return envelope.Result, nil
}

func (c *Client) lookupRoleAssignments(ctx context.Context, sysID, role string) ([]string, error) {
	q := url.Values{}
	q.Set("sysparm_query", fmt.Sprintf("user=%s^role.name=%s", sysID, role))
	q.Set("sysparm_fields", "sys_id")

	body, err := c.do(ctx, http.MethodGet, c.tableURL(roleTable, "")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Result []struct {
			SysID string `json:"sys_id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("snow: decode role assignments: %w", err)
	}
	ids := make([]string, 0, len(envelope.Result))
	for _, row := range envelope.Result {
		if row.SysID != "" {
			ids = append(ids, row.SysID)
		}
	}
	return ids, nil
}

func (c *Client) patch(ctx context.Context, table, sysID string, fields map[string]string, okMessage string) (WriteResult, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return WriteResult{}, err
	}
	if _, err := c.do(ctx, http.MethodPatch, c.tableURL(table, sysID), payload); err != nil {
		if apiErr, ok := err.(*apiError); ok {
			return WriteResult{Status: StatusError, Message: apiErr.Error()}, nil
		}
		return WriteResult{}, err
	}
	return WriteResult{Status: StatusSuccess, Message: okMessage}, nil
}

func (c *Client) delete(ctx context.Context, table, sysID string) error {
	_, err := c.do(ctx, http.MethodDelete, c.tableURL(table, sysID), nil)
	return err
}

func (c *Client) tableURL(table, sysID string) string {
	u := c.baseURL + "/api/now/table/" + table
	if sysID != "" {
		u += "/" + url.PathEscape(sysID)
	}
	return u
}

// apiError is a non-2xx Table API response that reached the instance.
type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("servicenow returned %d", e.status)
	}
	return fmt.Sprintf("servicenow returned %d: %s", e.status, e.body)
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.basicAuth {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w (status %d)", ErrCredentials, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound && method == http.MethodGet:
		return nil, fmt.Errorf("%w: %s", ErrTableMissing, rawURL)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &apiError{status: resp.StatusCode, body: errorSnippet(body)}
	}
	return body, nil
}

// errorSnippet pulls the instance's error message out of the response body,
// truncated so logs and task records stay bounded.
func errorSnippet(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		msg := envelope.Error.Message
		if envelope.Error.Detail != "" {
			msg += ": " + envelope.Error.Detail
		}
		return truncate(msg, 300)
	}
	return truncate(strings.TrimSpace(string(body)), 300)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
