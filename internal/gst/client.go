package gst

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"b2bmarket/internal/apperr"
)

var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

// Valid reports whether s is a well-formed 15 character GSTIN.
func Valid(s string) bool {
	return gstinPattern.MatchString(s)
}

// Normalize upper-cases and trims a GSTIN.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Taxpayer is the subset of the registry record the marketplace shows.
type Taxpayer struct {
	GSTIN            string `json:"gstin"`
	LegalName        string `json:"legalName"`
	TradeName        string `json:"tradeName,omitempty"`
	Status           string `json:"status"`
	StateCode        string `json:"stateCode,omitempty"`
	RegistrationDate string `json:"registrationDate,omitempty"`
}

// Client looks GSTINs up against an upstream registry API. Calls are paced
// by a token bucket shared by all callers.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(baseURL, apiKey string, perMinute int) *Client {
	if perMinute < 1 {
		perMinute = 1
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
	}
}

func (c *Client) Lookup(ctx context.Context, gstin string) (*Taxpayer, error) {
	gstin = Normalize(gstin)
	if !Valid(gstin) {
		return nil, apperr.Validation("invalid GSTIN format")
	}
	if c == nil || c.baseURL == "" {
		return nil, apperr.New(apperr.CodeDependency, "gst lookup is not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperr.Wrap(apperr.CodeDependency, err, "gst lookup rate limit exceeded")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(gstin), nil)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDependency, err, "gst registry unavailable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperr.NotFound("GSTIN not registered")
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, apperr.Wrap(apperr.CodeDependency, fmt.Errorf("upstream status %d", resp.StatusCode), "gst registry unavailable")
	}

	var out Taxpayer
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, apperr.Wrap(apperr.CodeDependency, err, "gst registry returned an invalid response")
	}
	if out.GSTIN == "" {
		out.GSTIN = gstin
	}
	return &out, nil
}
