// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package api is the REST client for the Smart Device Management API. It
// lists devices and structures, executes device commands, and downloads
// event media. A circuit breaker guards against hammering a failing
// backend.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/halcyonlabs/nestkit"
	"github.com/halcyonlabs/nestkit/device"
	"github.com/halcyonlabs/nestkit/diagnostics"
	"github.com/halcyonlabs/nestkit/internal/logging"
)

// DefaultAPIURL is the production SDM endpoint.
const DefaultAPIURL = "https://smartdevicemanagement.googleapis.com/v1"

// Client talks to the SDM API. It implements trait.CommandExecutor and
// device.Lister.
type Client struct {
	httpClient *http.Client
	apiURL     string
	projectID  string
	diag       *diagnostics.Diagnostics
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// Option configures a Client.
type Option func(*Client)

// WithAPIURL overrides the API endpoint, e.g. for tests or staging.
func WithAPIURL(url string) Option {
	return func(c *Client) { c.apiURL = url }
}

// WithDiagnostics attaches a counter set to the client.
func WithDiagnostics(d *diagnostics.Diagnostics) Option {
	return func(c *Client) { c.diag = d }
}

// NewClient returns an API client for the given device access project. The
// http client must inject OAuth credentials; see auth.HTTPClient.
func NewClient(httpClient *http.Client, projectID string, opts ...Option) (*Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", nestkit.ErrConfiguration)
	}
	c := &Client{
		httpClient: httpClient,
		apiURL:     DefaultAPIURL,
		projectID:  projectID,
		diag:       diagnostics.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name: "sdm-api",
		// Client-side errors do not indicate an unhealthy backend.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return errors.Is(err, nestkit.ErrAuth) ||
				errors.Is(err, nestkit.ErrForbidden) ||
				errors.Is(err, nestkit.ErrNotFound)
		},
	})
	return c, nil
}

// do runs one HTTP request through the circuit breaker and returns the
// response body.
func (c *Client) do(ctx context.Context, method, url string, body []byte, header http.Header) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("%w: build request: %v", nestkit.ErrAPI, err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", nestkit.ErrAPI, err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read response: %v", nestkit.ErrAPI, err)
		}
		if resp.StatusCode >= 400 {
			return nil, statusError(resp.StatusCode, data)
		}
		return data, nil
	})
}

// statusError maps an HTTP error status onto the error taxonomy.
func statusError(status int, body []byte) error {
	detail := errorDetail(body)
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: unable to authenticate with API: %s", nestkit.ErrAuth, detail)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", nestkit.ErrForbidden, detail)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", nestkit.ErrNotFound, detail)
	default:
		return fmt.Errorf("%w: status %d: %s", nestkit.ErrAPI, status, detail)
	}
}

// errorDetail extracts the API error message from a response body.
func errorDetail(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return "error from API"
}

func (c *Client) devicesURL() string {
	return fmt.Sprintf("%s/enterprises/%s/devices", c.apiURL, c.projectID)
}

func (c *Client) structuresURL() string {
	return fmt.Sprintf("%s/enterprises/%s/structures", c.apiURL, c.projectID)
}

// GetDevices returns all devices in the project.
func (c *Client) GetDevices(ctx context.Context) ([]*device.Device, error) {
	data, err := c.do(ctx, http.MethodGet, c.devicesURL(), nil, nil)
	if err != nil {
		return nil, err
	}
	var listing struct {
		Devices []json.RawMessage `json:"devices"`
	}
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("%w: malformed device listing: %v", nestkit.ErrAPI, err)
	}
	devices := make([]*device.Device, 0, len(listing.Devices))
	for _, raw := range listing.Devices {
		d, err := device.New(raw, c)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// GetDevice returns one device by its id within the project.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (*device.Device, error) {
	data, err := c.do(ctx, http.MethodGet, c.devicesURL()+"/"+deviceID, nil, nil)
	if err != nil {
		return nil, err
	}
	return device.New(data, c)
}

// GetStructures returns all structures in the project.
func (c *Client) GetStructures(ctx context.Context) ([]*device.Structure, error) {
	data, err := c.do(ctx, http.MethodGet, c.structuresURL(), nil, nil)
	if err != nil {
		return nil, err
	}
	var listing struct {
		Structures []json.RawMessage `json:"structures"`
	}
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("%w: malformed structure listing: %v", nestkit.ErrAPI, err)
	}
	structures := make([]*device.Structure, 0, len(listing.Structures))
	for _, raw := range listing.Structures {
		s, err := device.NewStructure(raw)
		if err != nil {
			return nil, err
		}
		structures = append(structures, s)
	}
	return structures, nil
}

// GetStructure returns one structure by its id within the project.
func (c *Client) GetStructure(ctx context.Context, structureID string) (*device.Structure, error) {
	data, err := c.do(ctx, http.MethodGet, c.structuresURL()+"/"+structureID, nil, nil)
	if err != nil {
		return nil, err
	}
	return device.NewStructure(data)
}

// ListDevices implements device.Lister.
func (c *Client) ListDevices(ctx context.Context) ([]*device.Device, error) {
	return c.GetDevices(ctx)
}

// ListStructures implements device.Lister.
func (c *Client) ListStructures(ctx context.Context) ([]*device.Structure, error) {
	return c.GetStructures(ctx)
}

// Execute runs a device command and returns the raw results payload. It
// implements trait.CommandExecutor.
func (c *Client) Execute(ctx context.Context, deviceName, command string, params map[string]any) (json.RawMessage, error) {
	c.diag.Increment(command)
	body, err := json.Marshal(map[string]any{
		"command": command,
		"params":  params,
	})
	if err != nil {
		return nil, fmt.Errorf("encode command: %w", err)
	}
	url := fmt.Sprintf("%s/%s:executeCommand", c.apiURL, deviceName)
	logging.Debug().Str("device", deviceName).Str("command", command).Msg("Executing device command")
	data, err := c.do(ctx, http.MethodPost, url, body, nil)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed command response: %v", nestkit.ErrAPI, err)
	}
	if parsed.Results == nil {
		return json.RawMessage(`{}`), nil
	}
	return parsed.Results, nil
}

// FetchImage downloads media from an absolute url. It implements
// trait.CommandExecutor.
func (c *Client) FetchImage(ctx context.Context, url, basicToken string, width int) ([]byte, error) {
	c.diag.Increment("fetch_image")
	if width > 0 {
		url = url + "?width=" + strconv.Itoa(width)
	}
	var header http.Header
	if basicToken != "" {
		header = http.Header{"Authorization": []string{"Basic " + basicToken}}
	}
	return c.do(ctx, http.MethodGet, url, nil, header)
}
