package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// apiError carries the server's message for a non-2xx answer
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(opts *rootOptions) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(opts.api, "/"),
		token:   loadToken(opts.tokenFile),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// do sends body as JSON and decodes a successful answer into out
func (c *apiClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Message string            `json:"message"`
			Fields  map[string]string `json:"fields"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		msg := e.Message
		for field, problem := range e.Fields {
			msg += fmt.Sprintf("; %s %s", field, problem)
		}
		return &apiError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token), 0o600)
}

func loadToken(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
