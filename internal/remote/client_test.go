package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschirtzinger/practicesync/internal/credential"
	"github.com/mschirtzinger/practicesync/internal/model"
)

type recorded struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recorded
	handler  func(w http.ResponseWriter, r recorded)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(data, &body)
	rec := recorded{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()

	f.handler(w, rec)
}

func (f *fakeAPI) all() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func newTestClient(t *testing.T, handler func(w http.ResponseWriter, r recorded)) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{handler: handler}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Databases = Databases{Library: "lib-db", Sessions: "sess-db", Logs: "log-db"}
	cfg.PageSize = 2
	return New(cfg, credential.Static("tok"), nil), api
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func title(s string) map[string]any {
	return map[string]any{"type": "title", "title": []any{map[string]any{"plain_text": s}}}
}

func number(n float64) map[string]any {
	return map[string]any{"type": "number", "number": n}
}

func relation(id string) map[string]any {
	return map[string]any{"type": "relation", "relation": []any{map[string]any{"id": id}}}
}

func TestFetchLibrary_PagesUntilNoCursor(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		cursor, _ := r.Body["start_cursor"].(string)
		switch cursor {
		case "":
			writeJSON(w, 200, map[string]any{
				"results": []any{
					map[string]any{"id": "a", "properties": map[string]any{
						"Name":   title("Blackbird"),
						"Type":   map[string]any{"type": "select", "select": map[string]any{"name": "Song"}},
						"Artist": map[string]any{"type": "rich_text", "rich_text": []any{map[string]any{"plain_text": "The Beatles"}}},
						"Tags": map[string]any{"type": "multi_select", "multi_select": []any{
							map[string]any{"name": "fingerstyle"}, map[string]any{"name": "acoustic"},
						}},
						"Last Practiced":  map[string]any{"type": "date", "date": map[string]any{"start": "2026-02-01"}},
						"Times Practiced": number(4),
					}},
					map[string]any{"id": "b", "properties": map[string]any{"Name": title("Spider")}},
				},
				"has_more":    true,
				"next_cursor": "c2",
			})
		case "c2":
			writeJSON(w, 200, map[string]any{
				"results": []any{
					map[string]any{"id": "c", "properties": map[string]any{"Name": title("Gone")}, "archived": true},
					map[string]any{"id": "d", "properties": map[string]any{"Name": title("Arpeggios"),
						"Type": map[string]any{"type": "select", "select": map[string]any{"name": "Exercise"}}}},
				},
				"has_more":    false,
				"next_cursor": nil,
			})
		}
	})

	items, err := client.FetchLibrary(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "Blackbird", items[0].Name)
	assert.Equal(t, model.ItemTypeSong, items[0].Type)
	require.NotNil(t, items[0].Artist)
	assert.Equal(t, "The Beatles", *items[0].Artist)
	assert.Equal(t, []string{"fingerstyle", "acoustic"}, items[0].Tags)
	require.NotNil(t, items[0].LastPracticed)
	assert.Equal(t, "2026-02-01", model.DayKey(*items[0].LastPracticed))
	assert.Equal(t, 4, items[0].TimesPracticed)

	assert.Equal(t, model.ItemTypeUnknown, items[1].Type)
	assert.Nil(t, items[1].Artist)
	assert.Equal(t, []string{}, items[1].Tags)
	assert.Equal(t, "d", items[2].ID)

	reqs := api.all()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/databases/lib-db/query", reqs[0].Path)
	assert.Equal(t, float64(2), reqs[0].Body["page_size"])
	assert.Equal(t, "Bearer tok", reqs[0].Header.Get("Authorization"))
	assert.Equal(t, "2022-06-28", reqs[0].Header.Get("Notion-Version"))
	assert.Equal(t, "c2", reqs[1].Body["start_cursor"])
}

func TestFetchSessions_RequestsDescendingDate(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, 200, map[string]any{
			"results": []any{
				map[string]any{"id": "s1", "properties": map[string]any{
					"Name":       title("Practice"),
					"Date":       map[string]any{"type": "date", "date": map[string]any{"start": "2026-03-04"}},
					"Goal (min)": number(45),
				}},
				map[string]any{"id": "s2", "properties": map[string]any{"Name": title("No goal")}},
			},
			"has_more": false,
		})
	})

	sessions, err := client.FetchSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "2026-03-04", sessions[0].DayKey())
	assert.Equal(t, 45, sessions[0].GoalMinutes)
	assert.Equal(t, model.DefaultGoalMinutes, sessions[1].GoalMinutes)

	sorts := api.all()[0].Body["sorts"].([]any)
	require.Len(t, sorts, 1)
	assert.Equal(t, map[string]any{"property": "Date", "direction": "descending"}, sorts[0])
}

func TestFetchLogs_FiltersBySession(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, 200, map[string]any{
			"results": []any{
				map[string]any{"id": "l1", "properties": map[string]any{
					"Name":               title("Blackbird"),
					"Item":               relation("lib-1"),
					"Session":            relation("s1"),
					"Planned Time (min)": number(10),
					"Actual Time (min)":  number(7.5),
					"Order":              number(0),
					"Notes":              map[string]any{"type": "rich_text", "rich_text": []any{map[string]any{"plain_text": "slow"}}},
				}},
				map[string]any{"id": "l2", "properties": map[string]any{
					"Name":               title("Scales"),
					"Item":               relation("lib-2"),
					"Planned Time (min)": number(5),
					"Actual Time (min)":  map[string]any{"type": "number", "number": nil},
					"Order":              number(1),
				}},
			},
		})
	})

	logs, err := client.FetchLogs(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.Equal(t, "lib-1", logs[0].ItemID)
	assert.Equal(t, 10, logs[0].PlannedMinutes)
	require.NotNil(t, logs[0].ActualMinutes)
	assert.Equal(t, 7.5, *logs[0].ActualMinutes)
	require.NotNil(t, logs[0].Notes)
	assert.Equal(t, "slow", *logs[0].Notes)

	assert.Equal(t, "s1", logs[1].SessionID, "missing relation falls back to the queried session")
	assert.Nil(t, logs[1].ActualMinutes)
	assert.Equal(t, 1, logs[1].Order)

	body := api.all()[0].Body
	assert.Equal(t, map[string]any{
		"property": "Session",
		"relation": map[string]any{"contains": "s1"},
	}, body["filter"])
	assert.Equal(t, []any{map[string]any{"property": "Order", "direction": "ascending"}}, body["sorts"])
}

func TestQuery_MissingResultsIsInvalidResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, 200, map[string]any{"object": "list"})
	})

	_, err := client.FetchLibrary(context.Background())
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestQuery_MalformedBodyIsDecodingError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("{not json"))
	})

	_, err := client.FetchSessions(context.Background())
	assert.ErrorIs(t, err, ErrDecoding)
}

func TestHTTPError_ExtractsMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, 401, map[string]any{"object": "error", "message": "API token is invalid."})
	})

	_, err := client.FetchLibrary(context.Background())
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 401, httpErr.Status)
	assert.Equal(t, "API token is invalid.", httpErr.Message)
	assert.True(t, IsAuthError(err))
	assert.False(t, IsRetryable(err))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.Databases.Library = "lib-db"
	client := New(cfg, credential.Static("tok"), nil)

	_, err := client.FetchLibrary(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
	assert.True(t, IsRetryable(err))
}

func TestNoCredential(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, 200, map[string]any{"results": []any{}})
	})
	client.creds = credential.Static("")

	_, err := client.FetchLibrary(context.Background())
	assert.ErrorIs(t, err, credential.ErrNoCredential)
	assert.True(t, IsAuthError(err))
	assert.Empty(t, api.all(), "no request without a credential")
}

func TestCreateSession(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, 200, map[string]any{"id": "new-session"})
	})

	s, err := client.CreateSession(context.Background(), "Practice 2026-03-04", "2026-03-04", 0)
	require.NoError(t, err)
	assert.Equal(t, "new-session", s.ID)
	assert.Equal(t, "2026-03-04", s.DayKey())
	assert.Equal(t, model.DefaultGoalMinutes, s.GoalMinutes)

	req := api.all()[0]
	assert.Equal(t, "/pages", req.Path)
	assert.Equal(t, map[string]any{"database_id": "sess-db"}, req.Body["parent"])
	props := req.Body["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"date": map[string]any{"start": "2026-03-04"}}, props["Date"])
	assert.Equal(t, map[string]any{"number": float64(30)}, props["Goal (min)"])
}

func TestCreateSession_BadDateFallsBackToNow(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, 200, map[string]any{"id": "s"})
	})

	s, err := client.CreateSession(context.Background(), "x", "someday", 20)
	require.NoError(t, err)
	assert.False(t, s.Date.IsZero())
	assert.Equal(t, 20, s.GoalMinutes)
}

func TestCreateLog(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, 200, map[string]any{"id": "log-9"})
	})

	id, err := client.CreateLog(context.Background(), LogCreate{
		Name: "Blackbird", ItemID: "lib-1", SessionID: "s1", PlannedMinutes: 10, Order: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "log-9", id)

	props := api.all()[0].Body["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"relation": []any{map[string]any{"id": "lib-1"}}}, props["Item"])
	assert.Equal(t, map[string]any{"relation": []any{map[string]any{"id": "s1"}}}, props["Session"])
	assert.Equal(t, map[string]any{"number": float64(10)}, props["Planned Time (min)"])
	assert.Equal(t, map[string]any{"number": float64(3)}, props["Order"])
	assert.NotContains(t, props, "Actual Time (min)")
	assert.NotContains(t, props, "Notes")
}

func TestCreateLog_MissingIDIsInvalidResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, 200, map[string]any{})
	})

	_, err := client.CreateLog(context.Background(), LogCreate{Name: "x", ItemID: "i", SessionID: "s", PlannedMinutes: 1})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestUpdateLog_SendsOnlyProvidedFields(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, 200, map[string]any{"id": "log-1"})
	})

	actual := 12.25
	require.NoError(t, client.UpdateLog(context.Background(), "log-1", LogPatch{ActualMinutes: &actual}))
	require.NoError(t, client.UpdateLog(context.Background(), "log-1", LogPatch{}))

	reqs := api.all()
	require.Len(t, reqs, 1, "empty patch makes no request")
	assert.Equal(t, http.MethodPatch, reqs[0].Method)
	assert.Equal(t, "/pages/log-1", reqs[0].Path)
	assert.Equal(t, map[string]any{
		"Actual Time (min)": map[string]any{"number": 12.25},
	}, reqs[0].Body["properties"])
}

func TestDeleteLog_Archives(t *testing.T) {
	client, api := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, 200, map[string]any{"id": "log-1", "archived": true})
	})

	require.NoError(t, client.DeleteLog(context.Background(), "log-1"))
	req := api.all()[0]
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, map[string]any{"archived": true}, req.Body)
}

func TestCustomSchemaRenamesProperties(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[logs.planned_minutes]
name = "Planned"

[library.type]
name = "Category"
`), 0644))

	schema, err := LoadSchemaFile(path)
	require.NoError(t, err)
	assert.Equal(t, Property{Name: "Planned", Kind: KindNumber}, schema.Logs[FieldPlannedMinutes])
	assert.Equal(t, Property{Name: "Category", Kind: KindSelect}, schema.Library[FieldType])
	assert.Equal(t, "Order", schema.Logs[FieldOrder].Name)

	client, api := newTestClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, 200, map[string]any{"id": "x"})
	})
	client.cfg.Schema = schema

	planned := 8
	require.NoError(t, client.UpdateLog(context.Background(), "x", LogPatch{PlannedMinutes: &planned}))
	props := api.all()[0].Body["properties"].(map[string]any)
	assert.Contains(t, props, "Planned")
}

func TestSchemaValidate(t *testing.T) {
	assert.NoError(t, DefaultSchema().Validate())

	s := DefaultSchema()
	delete(s.Logs, FieldSession)
	assert.Error(t, s.Validate())

	s = DefaultSchema()
	s.Library[FieldName] = Property{Name: "Name", Kind: KindRichText}
	assert.Error(t, s.Validate())

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logs.item]\nname = \"Item\"\nkind = \"number\"\n"), 0644))
	_, err := LoadSchemaFile(path)
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "logs.item"))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(&HTTPError{Status: 429}))
	assert.True(t, IsRetryable(&HTTPError{Status: 503}))
	assert.False(t, IsRetryable(&HTTPError{Status: 400}))
	assert.Equal(t, "http 404: Not Found", (&HTTPError{Status: 404}).Error())
}
