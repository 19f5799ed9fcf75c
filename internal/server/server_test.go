package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aevon-lab/geosplit/internal/core/config"
	httperr "github.com/aevon-lab/geosplit/internal/core/errors"
	"github.com/aevon-lab/geosplit/internal/metrics"
	"github.com/aevon-lab/geosplit/internal/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const regionsDoc = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[1,1]},"properties":{"region":"North","id":1}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[2,2]},"properties":{"region":"South","id":2}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[3,3]},"properties":{"region":"North","id":3}}
]}`

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Output.Root = t.TempDir()
	cfg.Staging.Dir = t.TempDir()
	return *cfg
}

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regions.geojson")
	require.NoError(t, os.WriteFile(path, []byte(regionsDoc), 0o644))
	return path
}

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc.RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, url string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSplitHandler_RunsPipeline(t *testing.T) {
	cfg := baseConfig(t)
	r := newRouter(NewService(cfg, nil, nil, 1))

	body, _ := json.Marshal(SplitRequest{Input: writeDataset(t), SplitKey: "region", Folder: "out"})
	resp := do(r, http.MethodPost, "/v1/splits", body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.Equal(t, "completed", result["status"])
	require.Equal(t, float64(2), result["documents"])

	_, err := os.Stat(filepath.Join(cfg.Output.Root, "out", "North.geojson"))
	require.NoError(t, err)
}

func TestSplitHandler_Errors(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		run            RunFunc
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "malformed json",
			body:           `{"input":`,
			expectedStatus: http.StatusBadRequest,
			expectedType:   httperr.HttpInvalidJsonError,
		},
		{
			name:           "missing split key",
			body:           `{"input":"a.shp"}`,
			expectedStatus: http.StatusBadRequest,
			expectedType:   httperr.HttpInvalidJsonError,
		},
		{
			name:           "invalid extension",
			body:           `{"input":"a.shp","split_key":"region","extension":"kml"}`,
			expectedStatus: http.StatusBadRequest,
			expectedType:   httperr.KindInvalidConfig,
		},
		{
			name:           "unreadable source",
			body:           `{"input":"/does/not/exist.shp","split_key":"region"}`,
			expectedStatus: http.StatusBadRequest,
			expectedType:   httperr.KindSourceUnreadable,
		},
		{
			name: "corrupt staging",
			body: `{"input":"a.shp","split_key":"region"}`,
			run: func(context.Context, config.Config, pipeline.Dependencies) (pipeline.Summary, error) {
				return pipeline.Summary{}, &httperr.StagingCorruptError{Unit: "North", Line: 2, Chunk: []byte("{"), Err: errors.New("eof")}
			},
			expectedStatus: http.StatusInternalServerError,
			expectedType:   httperr.KindStagingCorrupt,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(NewService(baseConfig(t), nil, tc.run, 1))
			resp := do(r, http.MethodPost, "/v1/splits", []byte(tc.body))
			if resp.Code != tc.expectedStatus {
				t.Logf("unexpected response body: %s", resp.Body.String())
			}
			require.Equal(t, tc.expectedStatus, resp.Code)

			var errResp httperr.ErrorResponse
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
			require.Equal(t, tc.expectedType, errResp.ErrorType)
		})
	}
}

func TestSplitHandler_BusyWhenSlotsTaken(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	run := func(ctx context.Context, cfg config.Config, _ pipeline.Dependencies) (pipeline.Summary, error) {
		close(started)
		<-release
		return pipeline.Summary{Documents: 1}, nil
	}
	r := newRouter(NewService(baseConfig(t), nil, run, 1))
	body := []byte(`{"input":"a.shp","split_key":"region"}`)

	first := make(chan int)
	go func() { first <- do(r, http.MethodPost, "/v1/splits", body).Code }()
	<-started

	resp := do(r, http.MethodPost, "/v1/splits", body)
	require.Equal(t, http.StatusTooManyRequests, resp.Code)

	close(release)
	require.Equal(t, http.StatusOK, <-first)
}

func TestSplitHandler_RequestOverridesBase(t *testing.T) {
	var got config.Config
	run := func(_ context.Context, cfg config.Config, _ pipeline.Dependencies) (pipeline.Summary, error) {
		got = cfg
		return pipeline.Summary{}, nil
	}
	base := baseConfig(t)
	r := newRouter(NewService(base, nil, run, 1))

	body := `{"input":"a.shp","split_key":"region","extension":"json","absent_policy":"shared","concurrency":3,
		"filter":{"key":"region","mode":"text","text":"nor"}}`
	resp := do(r, http.MethodPost, "/v1/splits", []byte(body))
	require.Equal(t, http.StatusOK, resp.Code)

	require.Equal(t, "a.shp", got.Input.Path)
	require.Equal(t, "json", got.Output.Extension)
	require.Equal(t, 3, got.Finalize.Concurrency)
	require.Equal(t, config.FilterText, got.Filter.Mode)
	require.Equal(t, "geojson", base.Output.Extension)
}

func TestDiscoveryHandlers(t *testing.T) {
	r := newRouter(NewService(baseConfig(t), nil, nil, 1))
	path := writeDataset(t)

	resp := do(r, http.MethodGet, "/v1/keys?path="+path, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var keys struct {
		Keys []string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &keys))
	require.Equal(t, []string{"id", "region"}, keys.Keys)

	resp = do(r, http.MethodGet, "/v1/values?key=region&path="+path, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var values struct {
		Values []string `json:"values"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &values))
	require.Equal(t, []string{"North", "South"}, values.Values)

	resp = do(r, http.MethodGet, "/v1/values?path="+path, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.New()
	m.DocumentWritten()
	s := New(":0", "release", m, map[string]HealthChecker{"staging": DirChecker(t.TempDir())})

	resp := do(s.Engine, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"staging":"ok"`)

	resp = do(s.Engine, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.True(t, strings.Contains(resp.Body.String(), "geosplit_documents_written_total"))

	s = New(":0", "release", nil, map[string]HealthChecker{"staging": DirChecker(filepath.Join(t.TempDir(), "gone"))})
	resp = do(s.Engine, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
