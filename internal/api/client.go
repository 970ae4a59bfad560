package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	logx "taskpanel/pkg/logx"
)

const maxResponseBytes = 8 << 20

// Client talks to one backend. It is safe for concurrent use.
type Client struct {
	base *url.URL
	http *http.Client
	obs  Observer
	log  logx.Logger

	username string
	password string

	loginMu  sync.Mutex
	loggedIn bool
}

type Option func(*Client)

// WithHTTPClient replaces the default client. A nil Jar gets a fresh cookie
// jar so the login session sticks.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.obs = o
		}
	}
}

func WithLogger(log logx.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithCredentials makes the client log in lazily before its first call and
// again after the backend redirects a call to the login page.
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = strings.TrimSpace(username)
		c.password = password
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", baseURL)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 15 * time.Second},
		obs:  nopObserver{},
		log:  logx.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.http.Jar == nil {
		jar, _ := cookiejar.New(nil)
		c.http.Jar = jar
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

// Login posts the form credentials to /login under the base URL. The backend answers with a
// redirect to the dashboard on success and re-renders the login page
// otherwise.
func (c *Client) Login(ctx context.Context, username, password string) (err error) {
	start := time.Now()
	defer func() { c.obs.ObserveRequest("login", time.Since(start), err) }()

	form := url.Values{"username": {username}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/login", nil), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode >= 400 {
		return &APIError{Op: "login", Status: resp.StatusCode, Message: "login failed: " + http.StatusText(resp.StatusCode)}
	}
	if resp.Request != nil && strings.TrimRight(resp.Request.URL.Path, "/") == c.loginPath() {
		return &APIError{Op: "login", Status: http.StatusUnauthorized, Message: "login failed: invalid username or password"}
	}
	c.loginMu.Lock()
	c.loggedIn = true
	c.loginMu.Unlock()
	c.log.Debug("backend session opened", logx.String("user", username))
	return nil
}

func (c *Client) ensureLogin(ctx context.Context) error {
	if c.username == "" {
		return nil
	}
	c.loginMu.Lock()
	done := c.loggedIn
	c.loginMu.Unlock()
	if done {
		return nil
	}
	return c.Login(ctx, c.username, c.password)
}

func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var out []Task
	if err := c.get(ctx, "list_tasks", "/api/tasks", nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].normalize()
	}
	return out, nil
}

func (c *Client) GetTask(ctx context.Context, id int64) (Task, error) {
	var t Task
	if err := c.get(ctx, "get_task", taskPath(id, ""), nil, &t); err != nil {
		return Task{}, err
	}
	t.normalize()
	return t, nil
}

// CreateTask posts t without its id and returns the id the backend
// assigned (0 when the backend does not report one).
func (c *Client) CreateTask(ctx context.Context, t Task) (int64, error) {
	t.ID = 0
	t.LastRun, t.CreatedAt = nil, nil
	res, err := c.mutate(ctx, "create_task", http.MethodPost, "/api/tasks", nil, t)
	if err != nil {
		return 0, err
	}
	return res.TaskID, nil
}

func (c *Client) UpdateTask(ctx context.Context, id int64, t Task) error {
	t.ID = id
	t.LastRun, t.CreatedAt = nil, nil
	_, err := c.mutate(ctx, "update_task", http.MethodPut, taskPath(id, ""), nil, t)
	return err
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	_, err := c.mutate(ctx, "delete_task", http.MethodDelete, taskPath(id, ""), nil, nil)
	return err
}

// RunTask asks the backend to execute the task now. The outcome of the run
// itself is not tracked.
func (c *Client) RunTask(ctx context.Context, id int64) error {
	_, err := c.mutate(ctx, "run_task", http.MethodPost, taskPath(id, "run"), nil, nil)
	return err
}

func (c *Client) ToggleTask(ctx context.Context, id int64) error {
	_, err := c.mutate(ctx, "toggle_task", http.MethodPost, taskPath(id, "toggle"), nil, nil)
	return err
}

func (c *Client) ListScripts(ctx context.Context) ([]Script, error) {
	var out []Script
	if err := c.get(ctx, "list_scripts", "/api/scripts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListFiles(ctx context.Context, folder string) ([]ScriptFile, error) {
	var out fileList
	if err := c.get(ctx, "list_files", "/api/files", url.Values{"folder": {folder}}, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

func (c *Client) DeleteFile(ctx context.Context, folder, filename string) error {
	q := url.Values{"folder": {folder}, "filename": {filename}}
	_, err := c.mutate(ctx, "delete_file", http.MethodDelete, "/api/files", q, nil)
	return err
}

func (c *Client) ReadFile(ctx context.Context, folder, filename string) (string, error) {
	var out fileContent
	q := url.Values{"folder": {folder}, "filename": {filename}}
	if err := c.get(ctx, "read_file", "/api/files/content", q, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

func (c *Client) SaveFile(ctx context.Context, folder, filename, content string) error {
	body := saveFileRequest{Folder: folder, Filename: filename, Content: content}
	_, err := c.mutate(ctx, "save_file", http.MethodPost, "/api/files", nil, body)
	return err
}

func taskPath(id int64, action string) string {
	p := "/api/tasks/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any) (err error) {
	start := time.Now()
	defer func() { c.observe(op, start, err) }()

	status, body, err := c.do(ctx, op, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return errorFromBody(op, status, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Op: op, Status: status, Message: fmt.Sprintf("%s: invalid response: %v", op, err)}
	}
	return nil
}

func (c *Client) mutate(ctx context.Context, op, method, path string, q url.Values, in any) (res Result, err error) {
	start := time.Now()
	defer func() { c.observe(op, start, err) }()

	status, body, err := c.do(ctx, op, method, path, q, in)
	if err != nil {
		return Result{}, err
	}
	if err := json.Unmarshal(body, &res); err != nil {
		if status < 200 || status > 299 {
			return Result{}, errorFromBody(op, status, body)
		}
		return Result{}, &APIError{Op: op, Status: status, Message: fmt.Sprintf("%s: invalid response: %v", op, err)}
	}
	if !res.Success {
		msg := strings.TrimSpace(res.Error)
		if msg == "" {
			msg = fallbackMessage(op, status)
		}
		return res, &APIError{Op: op, Status: status, Message: msg}
	}
	return res, nil
}

func (c *Client) observe(op string, start time.Time, err error) {
	took := time.Since(start)
	c.obs.ObserveRequest(op, took, err)
	if err != nil {
		c.log.Debug("backend call failed", logx.String("op", op), logx.Duration("took", took), logx.Err(err))
		if errors.Is(err, ErrLoginRequired) {
			c.loginMu.Lock()
			c.loggedIn = false
			c.loginMu.Unlock()
		}
	}
}

// do performs one request and returns the status and a bounded body.
// Redirects to the login page come back as a 401 APIError.
func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, in any) (int, []byte, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return 0, nil, err
	}

	var rd io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("%s: encode: %w", op, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), rd)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode == http.StatusUnauthorized || c.isLoginPage(resp) {
		return 0, nil, &APIError{Op: op, Status: http.StatusUnauthorized, Message: op + ": login required"}
	}
	return resp.StatusCode, body, nil
}

// loginPath is the backend's login page under the base URL's path prefix.
func (c *Client) loginPath() string {
	return strings.TrimRight(c.base.Path, "/") + "/login"
}

// isLoginPage reports whether the request chain ended on the login page.
func (c *Client) isLoginPage(resp *http.Response) bool {
	if resp == nil || resp.Request == nil || resp.Request.URL == nil {
		return false
	}
	return strings.TrimRight(resp.Request.URL.Path, "/") == c.loginPath() && resp.Request.Method == http.MethodGet
}

func errorFromBody(op string, status int, body []byte) error {
	var env struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil && strings.TrimSpace(env.Error) != "" {
		return &APIError{Op: op, Status: status, Message: strings.TrimSpace(env.Error)}
	}
	return &APIError{Op: op, Status: status, Message: fallbackMessage(op, status)}
}

func fallbackMessage(op string, status int) string {
	if status >= 200 && status <= 299 {
		return op + ": backend did not report success"
	}
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("%s: %d %s", op, status, text)
	}
	return fmt.Sprintf("%s: HTTP %d", op, status)
}
