package fred

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"Agentomics/internal/domain/models"
	drepo "Agentomics/internal/domain/repository"
	apphttp "Agentomics/pkg/http"
	"Agentomics/pkg/util"
)

const DefaultBaseURL = "https://api.stlouisfed.org/fred/series/observations"

// Option configures Client.
type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithFrequency sets the aggregation frequency (d, w, bw, m, q, sa, a).
func WithFrequency(f string) Option {
	return func(c *Client) { c.frequency = f }
}

// WithRange limits observations to [start, end]; empty strings leave a side open.
func WithRange(start, end string) Option {
	return func(c *Client) {
		c.start = start
		c.end = end
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client downloads series observations from the FRED API.
type Client struct {
	apiKey    string
	baseURL   string
	frequency string
	start     string
	end       string
	timeout   time.Duration
	http      *apphttp.Client
}

var _ drepo.IndicatorSource = (*Client)(nil)

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:    apiKey,
		baseURL:   DefaultBaseURL,
		frequency: "q",
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	// FRED throttles at 120 requests a minute per key
	c.http = apphttp.NewClient(
		apphttp.WithTimeout(c.timeout),
		apphttp.WithRetry(2, 2*time.Second),
		apphttp.WithRedactedParams("api_key"),
	)
	return c
}

type observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type observationsResponse struct {
	Observations []observation `json:"observations"`
	ErrorMessage string        `json:"error_message"`
}

// Fetch downloads one series and labels it. Values FRED reports as "." are
// kept as missing observations.
func (c *Client) Fetch(ctx context.Context, seriesID, label string) (*models.Indicator, error) {
	if seriesID == "" {
		return nil, fmt.Errorf("series id is required")
	}
	q := map[string][]string{
		"series_id": {seriesID},
		"api_key":   {c.apiKey},
		"file_type": {"json"},
	}
	if c.frequency != "" {
		q["frequency"] = []string{c.frequency}
	}
	if c.start != "" {
		q["observation_start"] = []string{c.start}
	}
	if c.end != "" {
		q["observation_end"] = []string{c.end}
	}

	var resp observationsResponse
	err := c.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method:      apphttp.MethodGet,
		URL:         c.baseURL,
		QueryParams: q,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fred %s: %w", seriesID, err)
	}
	if resp.Observations == nil {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = "no observations in response"
		}
		return nil, fmt.Errorf("fred %s: %s", seriesID, msg)
	}

	if label == "" {
		label = seriesID
	}
	ind := &models.Indicator{Label: label, Observations: make([]models.Observation, 0, len(resp.Observations))}
	for _, o := range resp.Observations {
		d, ok := util.ParseDate(o.Date)
		if !ok {
			return nil, fmt.Errorf("fred %s: bad date %q", seriesID, o.Date)
		}
		obs := models.Observation{Date: d}
		v, err := strconv.ParseFloat(strings.TrimSpace(o.Value), 64)
		if err != nil {
			obs.Missing = true
		} else {
			obs.Value = v
		}
		ind.Observations = append(ind.Observations, obs)
	}
	return ind, nil
}
