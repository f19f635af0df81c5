// Package client talks to the shotdeck backend over its REST API and
// implements domain.ProjectRepository.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shotdeck/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "shotdeck/1.0"
)

// Client is an HTTP implementation of domain.ProjectRepository.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// doRequest performs a JSON request and maps HTTP failures onto the
// domain error taxonomy.
func (c *Client) doRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	reqURL := c.baseURL + path

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("backend request", "method", method, "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("backend request failed", "error", err)
		return nil, domain.ErrServerOffline
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, domain.ErrProjectNotFound
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", domain.ErrConflict, apiError(body))
	case http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", domain.ErrImportFailed, apiError(body))
	default:
		c.logger.Error("backend request error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

// apiError extracts the backend's error message for wrapping.
func apiError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return "unknown error"
}

// ListProjects returns all projects known to the backend.
func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/projects", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Projects []domain.Project `json:"projects"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return out.Projects, nil
}

// GetScreens returns a project's screenshots in display order.
func (c *Client) GetScreens(ctx context.Context, project string) ([]domain.ScreenshotRef, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(project)+"/screens", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Screens []domain.ScreenshotRef `json:"screens"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return out.Screens, nil
}

// PutOrder replaces a project's stored order.
func (c *Client) PutOrder(ctx context.Context, project string, filenames []string) error {
	_, err := c.doRequest(ctx, http.MethodPut, "/api/projects/"+url.PathEscape(project)+"/order",
		map[string][]string{"order": filenames})
	return err
}

// ApplyOrder triggers the physical rename and returns the renamed refs.
func (c *Client) ApplyOrder(ctx context.Context, project string) ([]domain.ScreenshotRef, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(project)+"/apply", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Screens []domain.ScreenshotRef `json:"screens"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return out.Screens, nil
}

// ListPending returns the backend's pending inbox.
func (c *Client) ListPending(ctx context.Context) ([]domain.PendingItem, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/pending", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Pending []domain.PendingItem `json:"pending"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return out.Pending, nil
}

// ImportPending imports an inbox file into a project.
func (c *Client) ImportPending(ctx context.Context, project, sourceFilename string) (string, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/projects/"+url.PathEscape(project)+"/import",
		map[string]string{"source": sourceFilename})
	if err != nil {
		return "", err
	}
	var out struct {
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return out.Filename, nil
}

// ScreenURL returns the image URL for a screenshot, for viewers that
// render thumbnails out of process.
func (c *Client) ScreenURL(project, filename string) string {
	return c.baseURL + "/api/projects/" + url.PathEscape(project) + "/screens/" + url.PathEscape(filename)
}
