package redcap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"theradash/internal/config"

	"github.com/rs/zerolog/log"
)

// Record is one flat REDCap export row. REDCap field names are defined
// per project, so values are accessed through the configured field
// mapping rather than struct tags.
type Record map[string]string

// Client talks to the REDCap API, the clinical-trial side of the
// participant roster.
type Client struct {
	cfg        config.REDCapConfig
	httpClient *http.Client
}

// NewClient creates a new REDCap client
func NewClient(cfg config.REDCapConfig) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ExportRecords fetches the study participants matching the configured
// filter logic. Any transport or API failure is returned as an error:
// a partial roster would silently stop monitoring real participants,
// so callers abort the whole sync run instead.
func (c *Client) ExportRecords(ctx context.Context) ([]Record, error) {
	if c.cfg.APIURL == "" || c.cfg.APIToken == "" {
		return nil, fmt.Errorf("redcap credentials not configured")
	}

	form := url.Values{
		"token":        {c.cfg.APIToken},
		"content":      {"record"},
		"format":       {"json"},
		"type":         {"flat"},
		"returnFormat": {"json"},
		"fields":       {fmt.Sprintf("record_id,username,%s,%s", c.cfg.RemoteIDField, c.cfg.RAField)},
	}
	if c.cfg.FormName != "" {
		form.Set("forms", c.cfg.FormName)
	}
	if c.cfg.EventName != "" {
		form.Set("events", c.cfg.EventName)
	}
	if c.cfg.FilterLogic != "" {
		form.Set("filterLogic", c.cfg.FilterLogic)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("redcap request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("redcap returned status %d", resp.StatusCode)
	}

	// REDCap exports every field as a string regardless of its type
	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode redcap response: %w", err)
	}

	log.Debug().
		Int("records", len(records)).
		Str("filter", c.cfg.FilterLogic).
		Msg("Fetched participants from REDCap")

	return records, nil
}

// Get returns the trimmed value of a field, empty when absent
func (r Record) Get(field string) string {
	return strings.TrimSpace(r[field])
}
