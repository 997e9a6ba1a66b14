// Package client is a Go client for the task API. It holds the session
// token, attaches it to every task call and drops it when the server
// rejects it, the way the browser client sends the user back to login.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"task-api/api"
)

// ErrUnauthenticated means there is no session, or the server rejected
// the token. The session is cleared in the latter case.
var ErrUnauthenticated = errors.New("client: not logged in")

// AuthError is a rejected register or login. Message is the server's text.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "client: " + e.Message
}

// APIError is any other non-success response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %d %s", e.Status, e.Message)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUnauthorizedHook registers fn to run after the session was
// dropped because the server answered 401.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

type Client struct {
	baseURL        string
	http           *http.Client
	onUnauthorized func()

	mu    sync.RWMutex
	token string
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken restores a saved session.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Logout() {
	c.SetToken("")
}

func (c *Client) LoggedIn() bool {
	return c.Token() != ""
}

func (c *Client) Register(ctx context.Context, email, password string) (api.AuthResponse, error) {
	return c.authenticate(ctx, "/api/Auth/register", email, password)
}

func (c *Client) Login(ctx context.Context, email, password string) (api.AuthResponse, error) {
	return c.authenticate(ctx, "/api/Auth/login", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (api.AuthResponse, error) {
	var resp api.AuthResponse
	if err := c.do(ctx, http.MethodPost, path, false, api.AuthRequest{Email: email, Password: password}, &resp); err != nil {
		return api.AuthResponse{}, err
	}
	if resp.Token == "" {
		return resp, &AuthError{Message: resp.Message}
	}
	c.SetToken(resp.Token)
	return resp, nil
}

func (c *Client) ListTasks(ctx context.Context) ([]api.TaskDto, error) {
	var tasks []api.TaskDto
	if err := c.do(ctx, http.MethodGet, "/api/Tasks", true, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id int) (api.TaskDto, error) {
	var task api.TaskDto
	err := c.do(ctx, http.MethodGet, taskPath(id), true, nil, &task)
	return task, err
}

func (c *Client) CreateTask(ctx context.Context, req api.TaskRequest) (api.TaskDto, error) {
	var task api.TaskDto
	err := c.do(ctx, http.MethodPost, "/api/Tasks", true, req, &task)
	return task, err
}

func (c *Client) UpdateTask(ctx context.Context, id int, req api.TaskRequest) error {
	return c.do(ctx, http.MethodPut, taskPath(id), true, req, nil)
}

func (c *Client) DeleteTask(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), true, nil, nil)
}

// SetDone changes only the done flag of task id.
func (c *Client) SetDone(ctx context.Context, id int, done bool) error {
	return c.do(ctx, http.MethodPatch, taskPath(id)+"/done", true, api.DoneRequest{IsDone: &done}, nil)
}

// ToggleDone flips the done flag of task and returns the updated copy.
func (c *Client) ToggleDone(ctx context.Context, task api.TaskDto) (api.TaskDto, error) {
	task.IsDone = !task.IsDone
	if err := c.SetDone(ctx, task.ID, task.IsDone); err != nil {
		return api.TaskDto{}, err
	}
	return task, nil
}

func taskPath(id int) string {
	return "/api/Tasks/" + strconv.Itoa(id)
}

func (c *Client) do(ctx context.Context, method, path string, authed bool, body, out any) error {
	var token string
	if authed {
		token = c.Token()
		if token == "" {
			return ErrUnauthenticated
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && authed {
		c.dropSession(token)
		return ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// dropSession clears the token only if it is still the one that was
// rejected, so a login racing with a failing call is kept.
func (c *Client) dropSession(rejected string) {
	c.mu.Lock()
	cleared := c.token == rejected
	if cleared {
		c.token = ""
	}
	c.mu.Unlock()

	if cleared && c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}
