package cds

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBaseURL is the production CDS API endpoint.
const DefaultBaseURL = "https://cds.climate.copernicus.eu/api/v2"

// Retriever is the capability the fetch pool needs from the archive: a
// blocking call that leaves the result at target or fails. It exists so
// the pool can be exercised against a fake in tests.
type Retriever interface {
	Retrieve(ctx context.Context, dataset string, params Params, target string) error
}

// Client is a minimal CDS API client.
//
// Client is safe for concurrent use; the fetch pool shares one instance
// across all of its workers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	uid        string
	secret     string
	userAgent  string

	// PollInterval is the delay between task status checks.
	PollInterval time.Duration
}

// NewClient creates a client from the environment: CDSAPI_URL and
// CDSAPI_KEY when set, otherwise ~/.cdsapirc.
func NewClient() (*Client, error) {
	url := os.Getenv("CDSAPI_URL")
	key := os.Getenv("CDSAPI_KEY")

	if key == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		f, err := os.Open(filepath.Join(home, ".cdsapirc"))
		if err != nil {
			return nil, fmt.Errorf("no CDS API credentials: set CDSAPI_URL/CDSAPI_KEY or create ~/.cdsapirc")
		}
		defer f.Close()

		rcURL, rcKey, err := parseRC(f)
		if err != nil {
			return nil, err
		}
		if url == "" {
			url = rcURL
		}
		key = rcKey
	}

	if url == "" {
		url = DefaultBaseURL
	}

	return NewClientWith(url, key)
}

// NewClientWith creates a client for an explicit endpoint and
// "<uid>:<secret>" key.
func NewClientWith(baseURL, key string) (*Client, error) {
	uid, secret, ok := strings.Cut(key, ":")
	if !ok {
		return nil, fmt.Errorf("malformed CDS API key: expected \"<uid>:<secret>\"")
	}

	return &Client{
		// No global timeout: a queued retrieval can legitimately take
		// hours. Cancellation comes from the caller's context.
		httpClient:   &http.Client{},
		baseURL:      strings.TrimRight(baseURL, "/"),
		uid:          uid,
		secret:       secret,
		userAgent:    "era5-fetcher",
		PollInterval: 2 * time.Second,
	}, nil
}

// task is the state the API reports for a submitted request.
type task struct {
	State     string `json:"state"`
	RequestID string `json:"request_id"`
	Location  string `json:"location"`
	Error     struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
}

// Retrieve submits a request for dataset, waits for the archive to
// process it and downloads the result to target. The file is staged at
// target+".part" and renamed once fully written, so target never names
// a partial download.
func (c *Client) Retrieve(ctx context.Context, dataset string, params Params, target string) error {
	t, err := c.submit(ctx, dataset, params)
	if err != nil {
		return err
	}

	for t.State != "completed" {
		switch t.State {
		case "failed":
			return fmt.Errorf("request for %s failed: %s %s", dataset, t.Error.Message, t.Error.Reason)
		case "queued", "running", "":
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.PollInterval):
			}
			if t, err = c.status(ctx, t.RequestID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("request for %s entered unknown state %q", dataset, t.State)
		}
	}

	return c.download(ctx, t.Location, target)
}

func (c *Client) submit(ctx context.Context, dataset string, params Params) (*task, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	url := c.baseURL + "/resources/" + dataset
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doTask(req)
}

func (c *Client) status(ctx context.Context, requestID string) (*task, error) {
	url := c.baseURL + "/tasks/" + requestID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	return c.doTask(req)
}

func (c *Client) doTask(req *http.Request) (*task, error) {
	req.Header.Set("User-Agent", c.userAgent)
	req.SetBasicAuth(c.uid, c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// The API answers 2xx for accepted requests and reports request
	// failure through the task state, not the HTTP status.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, req.URL, strings.TrimSpace(string(msg)))
	}

	var t task
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("decoding task response: %w", err)
	}
	return &t, nil
}

// download streams a completed result to target via a temporary .part
// file in the same directory.
func (c *Client) download(ctx context.Context, location, target string) error {
	if !strings.Contains(location, "://") {
		location = c.baseURL + "/" + strings.TrimLeft(location, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	part := target + ".part"
	file, err := os.Create(part)
	if err != nil {
		return err
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(part)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(part)
		return err
	}

	return os.Rename(part, target)
}

// parseRC reads the "url:" and "key:" entries of a .cdsapirc file.
func parseRC(r io.Reader) (url, key string, err error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(name) {
		case "url":
			url = strings.TrimSpace(value)
		case "key":
			key = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", err
	}
	if key == "" {
		return "", "", fmt.Errorf(".cdsapirc is missing a key entry")
	}
	return url, key, nil
}
