// Package collector is the HTTP client for the experiment collector API.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
)

var ErrUnexpectedStatus = errors.New("collector: unexpected status")

type Client struct {
	BaseURL      string
	ExperimentID string
	HTTP         *http.Client
}

func New(baseURL, experimentID string) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		ExperimentID: experimentID,
		HTTP:         &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one track event. It is the telemetry transport.
func (c *Client) Send(ctx context.Context, req models.TrackRequest) error {
	if req.ExperimentID == "" {
		req.ExperimentID = c.ExperimentID
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode track event: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+constants.RouteTrack, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

func (c *Client) Stats(ctx context.Context) (*models.StatsResponse, error) {
	var out models.StatsResponse
	if err := c.get(ctx, constants.RouteStats, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Percentile(ctx context.Context, seconds float64, variant models.Variant) (*models.PercentileResponse, error) {
	q := url.Values{}
	q.Set("user_time", strconv.FormatFloat(seconds, 'f', -1, 64))
	q.Set("variant", string(variant))
	var out models.PercentileResponse
	if err := c.get(ctx, constants.RouteUserPercentile, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FunnelChart(ctx context.Context) (*models.ChartResponse, error) {
	return c.chart(ctx, constants.RouteFunnelChart)
}

func (c *Client) TimeDistribution(ctx context.Context) (*models.ChartResponse, error) {
	return c.chart(ctx, constants.RouteTimeDistribution)
}

func (c *Client) ComparisonCharts(ctx context.Context) (*models.ChartResponse, error) {
	return c.chart(ctx, constants.RouteComparisonCharts)
}

func (c *Client) chart(ctx context.Context, route string) (*models.ChartResponse, error) {
	var out models.ChartResponse
	if err := c.get(ctx, route, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, route string, q url.Values, out any) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("experiment_id", c.ExperimentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+route+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, route, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", route, err)
	}
	return nil
}
