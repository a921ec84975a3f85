package server

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chaskitbooks/chaskit/pkg/config"
	"github.com/chaskitbooks/chaskit/pkg/migrations"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestServer(t *testing.T, apiKey string) *echo.Echo {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	cfg := config.NewForTest()
	cfg.APIKey = apiKey

	e, err := newEcho(cfg, Dependencies{DB: db})
	require.NoError(t, err)
	return e
}

func get(e *echo.Echo, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	return rr
}

func TestNew(t *testing.T) {
	cfg := config.NewForTest()
	cfg.ServerPort = 4100

	srv, err := New(cfg, Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4100", srv.Addr)
	assert.NotZero(t, srv.ReadHeaderTimeout)
}

func TestServer_OpenRoutes(t *testing.T) {
	e := setupTestServer(t, "")

	for _, target := range []string{"/health", "/books", "/genres", "/series", "/authors", "/config", "/status", "/ratings/guide", "/books/stats"} {
		rr := get(e, target, nil)
		assert.Equal(t, http.StatusOK, rr.Code, "%s: %s", target, rr.Body.String())
	}

	rr := get(e, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_APIKey(t *testing.T) {
	e := setupTestServer(t, "s3cret")

	tests := []struct {
		name    string
		target  string
		headers map[string]string
		code    int
	}{
		{"health is exempt", "/health", nil, http.StatusOK},
		{"missing key", "/books", nil, http.StatusUnauthorized},
		{"wrong key", "/books", map[string]string{"apikey": "nope"}, http.StatusUnauthorized},
		{"apikey header", "/books", map[string]string{"apikey": "s3cret"}, http.StatusOK},
		{"bearer token", "/genres", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
		{"basic auth is not accepted", "/genres", map[string]string{"Authorization": "Basic s3cret"}, http.StatusUnauthorized},
		{"prefix of key", "/config", map[string]string{"apikey": "s3c"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rr := get(e, tt.target, tt.headers)
			assert.Equal(t, tt.code, rr.Code, rr.Body.String())
		})
	}

	rr := get(e, "/books", nil)
	assert.Contains(t, rr.Body.String(), `"unauthorized"`)
}

func TestServer_RatingsGuide(t *testing.T) {
	e := setupTestServer(t, "")

	rr := get(e, "/ratings/guide", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := struct {
		Categories []struct {
			Category string `json:"category"`
			Entries  []struct {
				Score       int    `json:"score"`
				Description string `json:"description"`
			} `json:"entries"`
		} `json:"categories"`
	}{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Categories, 5)
	assert.Equal(t, "Characters", resp.Categories[0].Category)
	assert.Len(t, resp.Categories[4].Entries, 10)
}

func TestServer_ClientConfig(t *testing.T) {
	e := setupTestServer(t, "")

	rr := get(e, "/config", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := map[string]any{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []any{"Lou Lou", "Chlo", "Affo"}, resp["which_witch_options"])
	assert.Equal(t, false, resp["cover_storage_enabled"])
	assert.Equal(t, "date", resp["default_sort"])
}

func TestServer_TestRoutes(t *testing.T) {
	e := setupTestServer(t, "")

	body := `{"books":[
		{"id":"b1","title":"Piranesi","author":"Susanna Clarke","completion_month":1,"completion_year":2021,"genres":["Fantasy"],"which_witch":"Chlo","ratings":{"plot":9,"enjoyment":10}},
		{"id":"b2","title":"Circe","author":"Madeline Miller","completion_month":2,"completion_year":2021,"genres":["Myth"],"which_witch":"Affo"}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/test/books", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = get(e, "/books/b1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"overall_rating":9.5`)

	req = httptest.NewRequest(http.MethodDelete, "/test/data", nil)
	rr = httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"deleted_books":2}`, rr.Body.String())

	rr = get(e, "/books", nil)
	assert.Contains(t, rr.Body.String(), `"total":0`)

	rr = get(e, "/authors", nil)
	assert.Contains(t, rr.Body.String(), "Brandon Sanderson", "default authors survive a reset")
}
