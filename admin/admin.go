// Nestkit - Google Nest Smart Device Management client SDK
// Copyright 2026 Halcyon Labs
// SPDX-License-Identifier: Apache-2.0
// https://github.com/halcyonlabs/nestkit

// Package admin provisions the Cloud Pub/Sub topics and subscriptions that
// carry SDM events. It talks to the Pub/Sub REST API directly since the
// operations are rare one-shot setup calls.
package admin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/halcyonlabs/nestkit"
	"github.com/halcyonlabs/nestkit/internal/logging"
)

// PubsubAPIHost is the production Pub/Sub REST endpoint.
const PubsubAPIHost = "https://pubsub.googleapis.com/v1"

// sdmManagedTopicFormat is the topic Google creates when a device access
// project is configured with a managed topic; the argument is the device
// access project id.
const sdmManagedTopicFormat = "projects/sdm-prod/topics/enterprise-%s"

var (
	subscriptionPattern = regexp.MustCompile(`^projects/[^/]+/subscriptions/[^/]+$`)
	topicPattern        = regexp.MustCompile(`^projects/[^/]+/topics/[^/]+$`)
	projectPattern      = regexp.MustCompile(`^projects/[^/]+$`)
)

// ValidateSubscriptionName checks a fully qualified subscription name.
func ValidateSubscriptionName(name string) error {
	if !subscriptionPattern.MatchString(name) {
		return fmt.Errorf("%w: subscription name %q must match %s",
			nestkit.ErrConfiguration, name, subscriptionPattern)
	}
	return nil
}

// ValidateTopicName checks a fully qualified topic name.
func ValidateTopicName(name string) error {
	if !topicPattern.MatchString(name) {
		return fmt.Errorf("%w: topic name %q must match %s",
			nestkit.ErrConfiguration, name, topicPattern)
	}
	return nil
}

func validateProjectPrefix(prefix string) error {
	if !projectPattern.MatchString(prefix) {
		return fmt.Errorf("%w: project prefix %q must match %s",
			nestkit.ErrConfiguration, prefix, projectPattern)
	}
	return nil
}

// SDMManagedTopic returns the name of the Google-managed topic for a device
// access project.
func SDMManagedTopic(deviceAccessProjectID string) string {
	return fmt.Sprintf(sdmManagedTopicFormat, deviceAccessProjectID)
}

// NewSubscriptionName generates a unique subscription name under the given
// cloud project.
func NewSubscriptionName(cloudProjectID string) string {
	return fmt.Sprintf("projects/%s/subscriptions/nestkit-%s", cloudProjectID, uuid.NewString())
}

// Subscription describes one pub/sub subscription.
type Subscription struct {
	Name  string `json:"name"`
	Topic string `json:"topic"`
}

// EligibleTopics holds the topics a subscription for the project could
// attach to.
type EligibleTopics struct {
	TopicNames []string
}

// EligibleSubscriptions holds the existing subscriptions attached to the
// expected topic.
type EligibleSubscriptions struct {
	SubscriptionNames []string
}

// Client performs pub/sub admin operations. The http client must inject
// OAuth credentials; see auth.HTTPClient.
type Client struct {
	httpClient     *http.Client
	apiHost        string
	cloudProjectID string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIHost overrides the pub/sub endpoint, e.g. for tests.
func WithAPIHost(host string) ClientOption {
	return func(c *Client) { c.apiHost = host }
}

// NewClient returns an admin client scoped to one cloud console project.
func NewClient(httpClient *http.Client, cloudProjectID string, opts ...ClientOption) (*Client, error) {
	if cloudProjectID == "" {
		return nil, fmt.Errorf("%w: cloud project id is required", nestkit.ErrConfiguration)
	}
	c := &Client{
		httpClient:     httpClient,
		apiHost:        PubsubAPIHost,
		cloudProjectID: cloudProjectID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, resource string, body any) ([]byte, error) {
	var reader io.Reader
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiHost+"/"+resource, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", nestkit.ErrAPI, err)
	}
	if encoded != nil {
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
}

func statusError(status int, body []byte) error {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	detail := "error from API"
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		detail = parsed.Error.Message
	}
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", nestkit.ErrAuth, detail)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", nestkit.ErrForbidden, detail)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", nestkit.ErrNotFound, detail)
	default:
		return fmt.Errorf("%w: status %d: %s", nestkit.ErrAPI, status, detail)
	}
}

// CreateTopic creates the topic with the given fully qualified name.
func (c *Client) CreateTopic(ctx context.Context, topicName string) error {
	if err := ValidateTopicName(topicName); err != nil {
		return err
	}
	_, err := c.do(ctx, http.MethodPut, topicName, nil)
	return err
}

// DeleteTopic deletes the topic with the given fully qualified name.
func (c *Client) DeleteTopic(ctx context.Context, topicName string) error {
	if err := ValidateTopicName(topicName); err != nil {
		return err
	}
	_, err := c.do(ctx, http.MethodDelete, topicName, nil)
	return err
}

// GetTopic fetches topic metadata, primarily to probe for existence.
func (c *Client) GetTopic(ctx context.Context, topicName string) (map[string]any, error) {
	if err := ValidateTopicName(topicName); err != nil {
		return nil, err
	}
	data, err := c.do(ctx, http.MethodGet, topicName, nil)
	if err != nil {
		return nil, err
	}
	var topic map[string]any
	if err := json.Unmarshal(data, &topic); err != nil {
		return nil, fmt.Errorf("%w: malformed topic: %v", nestkit.ErrAPI, err)
	}
	return topic, nil
}

// ListTopics lists topic names under a `projects/<id>` prefix.
func (c *Client) ListTopics(ctx context.Context, projectsPrefix string) ([]string, error) {
	if err := validateProjectPrefix(projectsPrefix); err != nil {
		return nil, err
	}
	data, err := c.do(ctx, http.MethodGet, projectsPrefix+"/topics", nil)
	if err != nil {
		return nil, err
	}
	var listing struct {
		Topics []struct {
			Name string `json:"name"`
		} `json:"topics"`
	}
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("%w: malformed topic listing: %v", nestkit.ErrAPI, err)
	}
	names := make([]string, 0, len(listing.Topics))
	for _, t := range listing.Topics {
		names = append(names, t.Name)
	}
	return names, nil
}

// CreateSubscription creates a subscription attached to the given topic.
func (c *Client) CreateSubscription(ctx context.Context, topicName, subscriptionName string) error {
	if err := ValidateTopicName(topicName); err != nil {
		return err
	}
	if err := ValidateSubscriptionName(subscriptionName); err != nil {
		return err
	}
	_, err := c.do(ctx, http.MethodPut, subscriptionName, map[string]string{"topic": topicName})
	return err
}

// DeleteSubscription deletes the subscription with the given name.
func (c *Client) DeleteSubscription(ctx context.Context, subscriptionName string) error {
	if err := ValidateSubscriptionName(subscriptionName); err != nil {
		return err
	}
	_, err := c.do(ctx, http.MethodDelete, subscriptionName, nil)
	return err
}

// ListSubscriptions lists subscriptions under a `projects/<id>` prefix.
func (c *Client) ListSubscriptions(ctx context.Context, projectsPrefix string) ([]Subscription, error) {
	if err := validateProjectPrefix(projectsPrefix); err != nil {
		return nil, err
	}
	data, err := c.do(ctx, http.MethodGet, projectsPrefix+"/subscriptions", nil)
	if err != nil {
		return nil, err
	}
	var listing struct {
		Subscriptions []Subscription `json:"subscriptions"`
	}
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("%w: malformed subscription listing: %v", nestkit.ErrAPI, err)
	}
	return listing.Subscriptions, nil
}

// ListEligibleTopics finds topics a new subscription could attach to: the
// Google-managed SDM topic for the device access project, if it exists, plus
// any topics in the cloud console project.
func (c *Client) ListEligibleTopics(ctx context.Context, deviceAccessProjectID string) (*EligibleTopics, error) {
	var topics []string

	sdmTopic := SDMManagedTopic(deviceAccessProjectID)
	_, err := c.GetTopic(ctx, sdmTopic)
	switch {
	case err == nil:
		topics = append(topics, sdmTopic)
	case errors.Is(err, nestkit.ErrForbidden):
		// The managed topic exists; not having access to it is normal.
		logging.Debug().Str("topic", sdmTopic).Msg("SDM managed topic exists but is not accessible")
		topics = append(topics, sdmTopic)
	case errors.Is(err, nestkit.ErrNotFound):
		logging.Debug().Str("topic", sdmTopic).Msg("No SDM managed topic for project")
	default:
		return nil, fmt.Errorf("probe SDM managed topic: %w", err)
	}

	cloudTopics, err := c.ListTopics(ctx, "projects/"+c.cloudProjectID)
	if err != nil {
		return nil, fmt.Errorf("list cloud console topics: %w", err)
	}
	topics = append(topics, cloudTopics...)
	return &EligibleTopics{TopicNames: topics}, nil
}

// ListEligibleSubscriptions returns the cloud project's subscriptions that
// are attached to the expected topic.
func (c *Client) ListEligibleSubscriptions(ctx context.Context, expectedTopicName string) (*EligibleSubscriptions, error) {
	subs, err := c.ListSubscriptions(ctx, "projects/"+c.cloudProjectID)
	if err != nil {
		return nil, err
	}
	out := &EligibleSubscriptions{}
	for _, sub := range subs {
		if sub.Topic == expectedTopicName {
			out.SubscriptionNames = append(out.SubscriptionNames, sub.Name)
		}
	}
	return out, nil
}
