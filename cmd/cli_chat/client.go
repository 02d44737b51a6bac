package main

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// apiClient habla con la API de chat usando un bearer token.
type apiClient struct {
	http  *resty.Client
	token string
}

type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type loginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	User        struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

type sendResult struct {
	Response  string `json:"response"`
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
}

type historyResult struct {
	ThreadID string `json:"thread_id"`
	Messages []struct {
		Role      string    `json:"role"`
		Content   string    `json:"content"`
		Timestamp time.Time `json:"timestamp"`
	} `json:"messages"`
	TotalMessages int `json:"total_messages"`
}

type threadsResult struct {
	Threads []struct {
		ThreadID  string    `json:"thread_id"`
		CreatedAt time.Time `json:"created_at"`
		Current   bool      `json:"current"`
	} `json:"threads"`
	CurrentThreadID string `json:"current_thread_id"`
}

type threadResult struct {
	ThreadID string `json:"thread_id"`
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
	}
}

func (c *apiClient) do(method, path string, body, out any) error {
	req := c.http.R().SetError(&apiError{})
	if c.token != "" {
		req.SetAuthToken(c.token)
	}
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		if apiErr, ok := resp.Error().(*apiError); ok && apiErr.Code != "" {
			return apiErr
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode())
	}
	return nil
}

func (c *apiClient) Login(username, password string) (loginResult, error) {
	var out loginResult
	err := c.do(resty.MethodPost, "/auth/login", map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return loginResult{}, err
	}
	c.token = out.AccessToken
	return out, nil
}

func (c *apiClient) Logout() error {
	err := c.do(resty.MethodPost, "/auth/logout", nil, nil)
	c.token = ""
	return err
}

func (c *apiClient) Send(message string) (sendResult, error) {
	var out sendResult
	err := c.do(resty.MethodPost, "/chat/send", map[string]string{"message": message}, &out)
	return out, err
}

func (c *apiClient) History() (historyResult, error) {
	var out historyResult
	err := c.do(resty.MethodGet, "/chat/history", nil, &out)
	return out, err
}

func (c *apiClient) Clear() error {
	return c.do(resty.MethodDelete, "/chat/clear", nil, nil)
}

func (c *apiClient) NewThread() (string, error) {
	var out threadResult
	err := c.do(resty.MethodPost, "/chat/thread/create", nil, &out)
	return out.ThreadID, err
}

func (c *apiClient) SwitchThread(threadID string) (string, error) {
	var out threadResult
	err := c.do(resty.MethodPost, "/chat/thread/switch", map[string]string{"thread_id": threadID}, &out)
	return out.ThreadID, err
}

func (c *apiClient) Threads() (threadsResult, error) {
	var out threadsResult
	err := c.do(resty.MethodGet, "/chat/threads", nil, &out)
	return out, err
}
