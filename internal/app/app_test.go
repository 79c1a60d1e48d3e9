package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-harvester/internal/app"
	"github.com/JakeFAU/site-harvester/internal/config"
)

const bakeryPage = `<html><head><title>%s</title><meta name="description" content="Small batch bakery"></head>
<body><nav><a href="/">Home</a> <a href="/menu">Menu</a> <a href="/about">About</a></nav>
<main><h1>Fresh Bakes</h1><p>Sourdough, croissants, and seasonal pies baked every morning in Portland.</p></main></body></html>`

func newBakerySite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, title := range map[string]string{"/": "Fresh Bakes", "/menu": "Menu", "/about": "About Us"} {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != path {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(strings.Replace(bakeryPage, "%s", title, 1)))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFakeOpenAI(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Fetch.MaxRetries = 0
	cfg.Fetch.Timeout = 2 * time.Second
	cfg.Crawl.Deadline = 5 * time.Second
	cfg.Extract.Mode = config.ExtractModeLocal
	return cfg
}

func postJSON(t *testing.T, a *app.App, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestProcessAllEndToEnd(t *testing.T) {
	t.Parallel()

	site := newBakerySite(t)
	llm := newFakeOpenAI(t, "```json\n{\"name\":\"Fresh Bakes\",\"products\":[\"sourdough\"]}\n```")
	archiveDir := t.TempDir()

	cfg := testConfig(t)
	cfg.Analysis.APIKey = "sk-test"
	cfg.Analysis.BaseURL = llm.URL + "/v1"
	cfg.Archive.Enabled = true
	cfg.Archive.Backend = config.ArchiveBackendLocal
	cfg.Archive.LocalDir = archiveDir

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	status, out := postJSON(t, a, `{"operationType":"process-all","url":"`+site.URL+`","maxPages":5,"storeType":"restaurant"}`)
	require.Equal(t, http.StatusOK, status, out)
	require.Equal(t, true, out["success"])
	assert.Len(t, out["processedUrls"], 3)

	info := out["storeInfo"].(map[string]any)
	assert.Equal(t, "Fresh Bakes", info["name"])
	meta := info["metadata"].(map[string]any)
	assert.Equal(t, "restaurant", meta["storeType"])
	assert.EqualValues(t, 3, meta["pagesAnalyzed"])
	assert.Equal(t, true, meta["analysisComplete"])

	uri, ok := out["archiveUri"].(string)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(uri, "file://"), uri)
	data, err := os.ReadFile(strings.TrimPrefix(uri, "file://"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Fresh Bakes")
	assert.True(t, strings.HasPrefix(strings.TrimPrefix(uri, "file://"), archiveDir))

	notices := a.Notices()
	require.Len(t, notices, 1, "no topic configured, so notifications stay in memory")
	assert.Equal(t, "harvest.run.archived", notices[0].Event)
	var note map[string]any
	require.NoError(t, json.Unmarshal(notices[0].Payload, &note))
	assert.Equal(t, uri, note["archiveUri"])
	assert.Equal(t, "restaurant", note["storeType"])
}

func TestCollectAndExtractWithoutAnalysis(t *testing.T) {
	t.Parallel()

	site := newBakerySite(t)
	a, err := app.New(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	status, out := postJSON(t, a, `{"operationType":"collect-urls","url":"`+site.URL+`/","maxPages":2}`)
	require.Equal(t, http.StatusOK, status, out)
	assert.EqualValues(t, 2, out["count"])

	status, out = postJSON(t, a, `{"operationType":"extract-content","urls":["`+site.URL+`/menu","`+site.URL+`/missing"],"batchSize":5}`)
	require.Equal(t, http.StatusOK, status, out)
	results := out["contentResults"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, true, results[0].(map[string]any)["success"])
	assert.Contains(t, results[0].(map[string]any)["content"], "Sourdough")
	assert.Equal(t, false, results[1].(map[string]any)["success"])
	assert.Equal(t, true, out["batchInfo"].(map[string]any)["isComplete"])

	status, out = postJSON(t, a, `{"operationType":"analyze-info","contentItems":[{"url":"`+site.URL+`","success":true,"content":"bread"}]}`)
	require.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "analysis service is not configured", out["error"])

	status, out = postJSON(t, a, `{"operationType":"process-all","url":"`+site.URL+`"}`)
	require.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "analysis service is not configured", out["error"])
	assert.Empty(t, a.Notices(), "archiving disabled")
}

func TestExtractHugeBatchIndexIsEmptyAndComplete(t *testing.T) {
	t.Parallel()

	site := newBakerySite(t)
	a, err := app.New(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	for _, size := range []string{"4", "10"} {
		status, out := postJSON(t, a, `{"operationType":"extract-content","urls":["`+site.URL+`/","`+site.URL+`/menu","`+site.URL+`/about"],"batchIndex":4611686018427387904,"batchSize":`+size+`}`)
		require.Equal(t, http.StatusOK, status, out)
		assert.Equal(t, true, out["success"])
		assert.Empty(t, out["contentResults"])
		info := out["batchInfo"].(map[string]any)
		assert.Equal(t, true, info["isComplete"])
		assert.Nil(t, info["nextBatch"])
		assert.EqualValues(t, 3, info["processedCount"])
	}
}

func TestNewFailsOnUnusableArchiveDir(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	cfg := testConfig(t)
	cfg.Archive.Enabled = true
	cfg.Archive.Backend = config.ArchiveBackendLocal
	cfg.Archive.LocalDir = filepath.Join(blocker, "archive")

	_, err := app.New(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "init local archive")
}

func TestNewRejectsBadServiceTemplate(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Extract.Mode = config.ExtractModeRemote
	cfg.Extract.ServiceURLTemplate = "https://reader.example/"

	_, err := app.New(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "init text service")
}

func TestReadyAndClose(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	assert.NotNil(t, a.Logger())
	assert.NotNil(t, a.Harvester())
	assert.Equal(t, config.ExtractModeLocal, a.Config().Extract.Mode)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
