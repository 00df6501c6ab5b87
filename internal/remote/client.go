// Package remote is the client for the paginated document API that holds the
// authoritative practice library, sessions and logs.
//
// Collections are queried with POST /databases/{id}/query and paged with
// start_cursor until the server stops returning a next_cursor. Rows are
// created with POST /pages, patched with PATCH /pages/{id}, and archived with
// PATCH /pages/{id} {"archived": true}. Property names are resolved through a
// Schema so the client works against differently named workspaces.
//
// The client is stateless beyond its credential provider and is safe for
// concurrent use.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mschirtzinger/practicesync/internal/credential"
	"github.com/mschirtzinger/practicesync/internal/model"
)

// Databases holds the remote collection ids.
type Databases struct {
	Library  string
	Sessions string
	Logs     string
}

// Config configures a Client.
type Config struct {
	BaseURL       string
	VersionHeader string
	Version       string
	PageSize      int
	Timeout       time.Duration
	Databases     Databases
	Schema        Schema
}

// DefaultConfig returns a configuration for the public API endpoint.
// Database ids must still be filled in.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://api.notion.com/v1",
		VersionHeader: "Notion-Version",
		Version:       "2022-06-28",
		PageSize:      100,
		Timeout:       30 * time.Second,
		Schema:        DefaultSchema(),
	}
}

// Client talks to the remote document API.
type Client struct {
	cfg    Config
	http   *http.Client
	creds  credential.Provider
	logger *log.Logger
}

// New creates a client. A nil logger writes to stderr.
func New(cfg Config, creds credential.Provider, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(os.Stderr, "[remote] ", log.LstdFlags)
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Schema.Library == nil && cfg.Schema.Sessions == nil && cfg.Schema.Logs == nil {
		cfg.Schema = DefaultSchema()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		creds:  creds,
		logger: logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// LogCreate describes a new practice log.
type LogCreate struct {
	Name           string
	ItemID         string
	SessionID      string
	PlannedMinutes int
	Order          int
	ActualMinutes  *float64
	Notes          *string
}

// LogPatch is a partial log update. Nil fields are not sent.
type LogPatch struct {
	PlannedMinutes *int
	ActualMinutes  *float64
	Order          *int
	Notes          *string
}

// IsEmpty reports whether the patch would send no properties.
func (p LogPatch) IsEmpty() bool {
	return p.PlannedMinutes == nil && p.ActualMinutes == nil && p.Order == nil && p.Notes == nil
}

// FetchLibrary returns every library item.
func (c *Client) FetchLibrary(ctx context.Context) ([]model.LibraryItem, error) {
	pages, err := c.queryAll(ctx, c.cfg.Databases.Library, queryRequest{})
	if err != nil {
		return nil, fmt.Errorf("fetch library: %w", err)
	}

	items := make([]model.LibraryItem, 0, len(pages))
	for _, pg := range pages {
		items = append(items, parseLibraryItem(pg, c.cfg.Schema.Library))
	}
	return items, nil
}

// FetchSessions returns every session, asking the server for newest first.
func (c *Client) FetchSessions(ctx context.Context) ([]model.PracticeSession, error) {
	req := queryRequest{}
	if p, ok := c.cfg.Schema.Sessions.Lookup(FieldDate); ok {
		req.Sorts = []sortSpec{{Property: p.Name, Direction: "descending"}}
	}

	pages, err := c.queryAll(ctx, c.cfg.Databases.Sessions, req)
	if err != nil {
		return nil, fmt.Errorf("fetch sessions: %w", err)
	}

	sessions := make([]model.PracticeSession, 0, len(pages))
	for _, pg := range pages {
		sessions = append(sessions, parseSession(pg, c.cfg.Schema.Sessions))
	}
	return sessions, nil
}

// FetchLogs returns the logs related to sessionID in ascending order.
func (c *Client) FetchLogs(ctx context.Context, sessionID string) ([]model.PracticeLog, error) {
	req := queryRequest{}
	if p, ok := c.cfg.Schema.Logs.Lookup(FieldSession); ok {
		req.Filter = map[string]any{
			"property": p.Name,
			"relation": map[string]any{"contains": sessionID},
		}
	}
	if p, ok := c.cfg.Schema.Logs.Lookup(FieldOrder); ok {
		req.Sorts = []sortSpec{{Property: p.Name, Direction: "ascending"}}
	}

	pages, err := c.queryAll(ctx, c.cfg.Databases.Logs, req)
	if err != nil {
		return nil, fmt.Errorf("fetch logs for session %s: %w", sessionID, err)
	}

	logs := make([]model.PracticeLog, 0, len(pages))
	for _, pg := range pages {
		logs = append(logs, parseLog(pg, c.cfg.Schema.Logs, sessionID))
	}
	return logs, nil
}

// CreateSession creates a session dated isoDate ("2006-01-02").
//
// The returned session echoes the input. If isoDate does not parse, the
// session's Date is set to the current time.
func (c *Client) CreateSession(ctx context.Context, name, isoDate string, goalMinutes int) (model.PracticeSession, error) {
	if goalMinutes <= 0 {
		goalMinutes = model.DefaultGoalMinutes
	}

	w := newWriter(c.cfg.Schema.Sessions)
	w.set(FieldName, name)
	w.set(FieldDate, isoDate)
	w.set(FieldGoalMinutes, goalMinutes)

	id, err := c.createPage(ctx, c.cfg.Databases.Sessions, w.props)
	if err != nil {
		return model.PracticeSession{}, fmt.Errorf("create session: %w", err)
	}

	date, err := model.ParseDay(isoDate)
	if err != nil {
		c.logger.Printf("session %s: unparseable date %q, using now", id, isoDate)
		date = time.Now()
	}

	return model.PracticeSession{
		ID:          id,
		Name:        name,
		Date:        date,
		GoalMinutes: goalMinutes,
	}, nil
}

// CreateLog creates a log and returns its server id.
func (c *Client) CreateLog(ctx context.Context, in LogCreate) (string, error) {
	w := newWriter(c.cfg.Schema.Logs)
	w.set(FieldName, in.Name)
	w.set(FieldItem, in.ItemID)
	w.set(FieldSession, in.SessionID)
	w.set(FieldPlannedMinutes, in.PlannedMinutes)
	w.set(FieldOrder, in.Order)
	if in.ActualMinutes != nil {
		w.set(FieldActualMinutes, *in.ActualMinutes)
	}
	if in.Notes != nil {
		w.set(FieldNotes, *in.Notes)
	}

	id, err := c.createPage(ctx, c.cfg.Databases.Logs, w.props)
	if err != nil {
		return "", fmt.Errorf("create log for item %s: %w", in.ItemID, err)
	}
	return id, nil
}

// UpdateLog sends only the fields set in patch. An empty patch makes no call.
func (c *Client) UpdateLog(ctx context.Context, logID string, patch LogPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	w := newWriter(c.cfg.Schema.Logs)
	if patch.PlannedMinutes != nil {
		w.set(FieldPlannedMinutes, *patch.PlannedMinutes)
	}
	if patch.ActualMinutes != nil {
		w.set(FieldActualMinutes, *patch.ActualMinutes)
	}
	if patch.Order != nil {
		w.set(FieldOrder, *patch.Order)
	}
	if patch.Notes != nil {
		w.set(FieldNotes, *patch.Notes)
	}

	body := map[string]any{"properties": w.props}
	if err := c.do(ctx, http.MethodPatch, "/pages/"+logID, body, nil); err != nil {
		return fmt.Errorf("update log %s: %w", logID, err)
	}
	return nil
}

// DeleteLog archives a log. The row is marked inactive, not removed.
func (c *Client) DeleteLog(ctx context.Context, logID string) error {
	body := map[string]any{"archived": true}
	if err := c.do(ctx, http.MethodPatch, "/pages/"+logID, body, nil); err != nil {
		return fmt.Errorf("archive log %s: %w", logID, err)
	}
	return nil
}

type sortSpec struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

type queryRequest struct {
	PageSize    int            `json:"page_size,omitempty"`
	StartCursor string         `json:"start_cursor,omitempty"`
	Filter      map[string]any `json:"filter,omitempty"`
	Sorts       []sortSpec     `json:"sorts,omitempty"`
}

type queryResponse struct {
	Results    *[]page `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// queryAll pages through a collection until no continuation cursor is returned.
func (c *Client) queryAll(ctx context.Context, databaseID string, req queryRequest) ([]page, error) {
	if databaseID == "" {
		return nil, fmt.Errorf("database id not configured")
	}

	req.PageSize = c.cfg.PageSize
	var all []page
	for {
		var resp queryResponse
		if err := c.do(ctx, http.MethodPost, "/databases/"+databaseID+"/query", req, &resp); err != nil {
			return nil, err
		}
		if resp.Results == nil {
			return nil, fmt.Errorf("%w: missing results array", ErrInvalidResponse)
		}

		for _, pg := range *resp.Results {
			if !pg.Archived {
				all = append(all, pg)
			}
		}

		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			break
		}
		req.StartCursor = *resp.NextCursor
	}
	return all, nil
}

func (c *Client) createPage(ctx context.Context, databaseID string, props map[string]any) (string, error) {
	if databaseID == "" {
		return "", fmt.Errorf("database id not configured")
	}

	body := map[string]any{
		"parent":     map[string]any{"database_id": databaseID},
		"properties": props,
	}
	var created page
	if err := c.do(ctx, http.MethodPost, "/pages", body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: created page has no id", ErrInvalidResponse)
	}
	return created.ID, nil
}

// do sends one JSON request and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.creds.Token()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.VersionHeader != "" && c.cfg.Version != "" {
		req.Header.Set(c.cfg.VersionHeader, c.cfg.Version)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading body: %w", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecoding, err)
	}
	return nil
}

// errorMessage pulls "message" out of a JSON error body, falling back to the
// trimmed body text.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
