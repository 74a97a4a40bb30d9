// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hunchcreative/dot/services/llm"
)

// ErrNotFound is returned when the record store has no row for the requested
// client. Callers turn this into a user-facing message rather than a 5xx.
var ErrNotFound = errors.New("records: not found")

// defaultRateLimit is the record store's documented request ceiling per
// second. Tool calls are sequential, so a small burst is enough.
const defaultRateLimit = 5

// Store is the data-store collaborator behind the assistant's tools.
//
// Description:
//
//	Four operations, one per tool. The first three are pure reads;
//	ReserveJobNumber advances the client's job sequence and must not be
//	cached. Implementations return ErrNotFound (possibly wrapped) when the
//	client code has no row.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// SearchPeople queries the people directory, optionally narrowed by
	// client code and/or a case-insensitive name fragment.
	SearchPeople(ctx context.Context, q PeopleQuery) (*PeopleResult, error)

	// ClientDetail returns the merged commercial record for one client.
	ClientDetail(ctx context.Context, clientCode string) (*ClientDetail, error)

	// SpendSummary returns the budget position for one client over one
	// period ("thisQuarter" or "lastQuarter").
	SpendSummary(ctx context.Context, clientCode, period string) (*SpendSummary, error)

	// ReserveJobNumber takes the next number in the client's job sequence.
	// This is a write; the sequence advances on success.
	ReserveJobNumber(ctx context.Context, clientCode string) (*JobReservation, error)
}

// =============================================================================
// HTTP Implementation
// =============================================================================

// HTTPStore implements Store against the record store's REST API.
//
// A shared rate limiter keeps the client inside the store's request ceiling
// even when several sessions are active; tool execution within one query is
// sequential, so the limiter rarely blocks in practice.
//
// Thread Safety: Safe for concurrent use.
type HTTPStore struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
}

// NewHTTPStoreWithConfig creates an HTTPStore with explicit configuration.
//
// Inputs:
//   - baseURL: Record store API root, no trailing slash.
//   - apiKey: Bearer token for the record store.
//   - rps: Requests per second ceiling. Pass 0 for the default.
//
// Outputs:
//   - *HTTPStore: Ready-to-use store. Never nil.
func NewHTTPStoreWithConfig(baseURL, apiKey string, rps int) *HTTPStore {
	if rps <= 0 {
		rps = defaultRateLimit
	}
	return &HTTPStore{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// NewHTTPStore creates an HTTPStore from the environment.
//
// Reads RECORDS_API_URL and RECORDS_API_KEY (falling back to the container
// secret mount), plus optional RECORDS_RATE_LIMIT. A missing URL or key is
// an error; the assistant cannot answer data questions without the store.
func NewHTTPStore() (*HTTPStore, error) {
	baseURL := os.Getenv("RECORDS_API_URL")
	apiKey := os.Getenv("RECORDS_API_KEY")

	if apiKey == "" {
		secretPath := "/run/secrets/records_api_key"
		if content, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(content))
			slog.Info("Read record store API key from container secrets")
		}
	}

	if baseURL == "" {
		return nil, fmt.Errorf("records: RECORDS_API_URL is not set")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("records: API key is missing (RECORDS_API_KEY)")
	}

	rps := defaultRateLimit
	if v := os.Getenv("RECORDS_RATE_LIMIT"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			slog.Warn("Invalid RECORDS_RATE_LIMIT, using default",
				slog.String("value", v),
				slog.Int("default", defaultRateLimit),
			)
		} else {
			rps = parsed
		}
	}

	return NewHTTPStoreWithConfig(baseURL, apiKey, rps), nil
}

// SearchPeople queries the people directory.
func (s *HTTPStore) SearchPeople(ctx context.Context, q PeopleQuery) (*PeopleResult, error) {
	params := url.Values{}
	if q.ClientCode != "" {
		params.Set("clientCode", q.ClientCode)
	}
	if q.SearchTerm != "" {
		params.Set("search", q.SearchTerm)
	}

	endpoint := s.baseURL + "/v1/people"
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var result PeopleResult
	if err := s.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	if result.People == nil {
		result.People = []Person{}
	}
	result.Count = len(result.People)
	return &result, nil
}

// clientRow is the wire shape of the client table row.
type clientRow struct {
	ClientCode    string `json:"clientCode"`
	ClientName    string `json:"clientName"`
	NextJobNumber string `json:"nextJobNumber"`
}

// budgetRow is the wire shape of the budget tracker row.
type budgetRow struct {
	CurrentQuarter  QuarterBudget `json:"currentQuarter"`
	LastQuarter     QuarterBudget `json:"lastQuarter"`
	RolloverEnabled bool          `json:"rolloverEnabled"`
	RolloverAmount  float64       `json:"rolloverAmount"`
}

// ClientDetail returns the merged commercial record for one client.
//
// Description:
//
//	The record store keeps the client row and the budget tracker row in
//	separate tables. Both are fetched in parallel and merged; either one
//	missing means the client code is unknown.
func (s *HTTPStore) ClientDetail(ctx context.Context, clientCode string) (*ClientDetail, error) {
	var core clientRow
	var budget budgetRow

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.getJSON(gctx, s.baseURL+"/v1/clients/"+url.PathEscape(clientCode), &core)
	})
	g.Go(func() error {
		return s.getJSON(gctx, s.baseURL+"/v1/clients/"+url.PathEscape(clientCode)+"/budget", &budget)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ClientDetail{
		ClientCode:      core.ClientCode,
		ClientName:      core.ClientName,
		CurrentQuarter:  budget.CurrentQuarter,
		LastQuarter:     budget.LastQuarter,
		RolloverEnabled: budget.RolloverEnabled,
		RolloverAmount:  budget.RolloverAmount,
		NextJobNumber:   core.NextJobNumber,
	}, nil
}

// SpendSummary returns the budget position for one client over one period.
func (s *HTTPStore) SpendSummary(ctx context.Context, clientCode, period string) (*SpendSummary, error) {
	endpoint := s.baseURL + "/v1/clients/" + url.PathEscape(clientCode) + "/spend?period=" + url.QueryEscape(period)

	var summary SpendSummary
	if err := s.getJSON(ctx, endpoint, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ReserveJobNumber takes the next number in the client's job sequence.
func (s *HTTPStore) ReserveJobNumber(ctx context.Context, clientCode string) (*JobReservation, error) {
	endpoint := s.baseURL + "/v1/clients/" + url.PathEscape(clientCode) + "/jobs/reserve"

	var reservation JobReservation
	if err := s.doJSON(ctx, http.MethodPost, endpoint, &reservation); err != nil {
		return nil, err
	}

	slog.Info("Reserved job number",
		slog.String("client_code", clientCode),
		slog.String("job_number", reservation.ReservedJobNumber),
	)
	return &reservation, nil
}

// getJSON performs a rate-limited GET and decodes the JSON response.
func (s *HTTPStore) getJSON(ctx context.Context, endpoint string, out any) error {
	return s.doJSON(ctx, http.MethodGet, endpoint, out)
}

// doJSON performs a rate-limited request and decodes the JSON response.
//
// 404 maps to ErrNotFound; other non-200 statuses become sanitized errors.
func (s *HTTPStore) doJSON(ctx context.Context, method, endpoint string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("records: rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("records: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("records: HTTP call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("records: read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("records: store returned %d: %s", resp.StatusCode, llm.SafeLogString(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("records: parse response: %w", err)
	}
	return nil
}
