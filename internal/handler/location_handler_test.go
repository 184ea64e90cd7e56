package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"GeoMatch-App/internal/application"
	"GeoMatch-App/internal/domain/model"
	"GeoMatch-App/internal/repository"
)

type locationResponse struct {
	Status  string              `json:"status"`
	Errors  string              `json:"errors"`
	Results []model.NearbyAgent `json:"results"`
}

type stubHealth struct{ err error }

func (s stubHealth) HealthCheck(context.Context) error { return s.err }

// brokenService すべての呼び出しが同じエラーを返す
type brokenService struct {
	application.LocationService
	err error
}

func (s brokenService) UpdateLocation(context.Context, string, string, string) error { return s.err }

func (s brokenService) FindNearby(context.Context, string, string, string, model.Kind) ([]model.NearbyAgent, error) {
	return nil, s.err
}

func newTestRouter(t *testing.T, service application.LocationService, health HealthChecker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewLocationHandler(service, health, nil).RegisterRoutes(router)
	return router
}

func newMemoryRouter(t *testing.T) *gin.Engine {
	t.Helper()
	backend := repository.NewMemoryBackend(time.Now, 0)
	t.Cleanup(func() { _ = backend.Close() })
	service := application.NewLocationService(backend.Positions, backend.Cells, application.DefaultOptions(), nil)
	return newTestRouter(t, service, backend)
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, locationResponse) {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp locationResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestLocationHandler_RoundTrip(t *testing.T) {
	router := newMemoryRouter(t)

	w, resp := doJSON(t, router, http.MethodPost, "/drivers/location",
		`{"driver_id":"D1","latitude":40.0,"longitude":-70.0}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", resp.Status)

	// 文字列の緯度経度も受け付ける
	w, _ = doJSON(t, router, http.MethodPost, "/passengers/location",
		`{"passenger_id":"P1","latitude":"40.0","longitude":"-70.0"}`)
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("乗客からドライバーを検索（セルなし）", func(t *testing.T) {
		w, resp := doJSON(t, router, http.MethodGet, "/passengers/drivers?passenger_id=P1&latitude=40.0&longitude=-70.0", "")
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "D1", resp.Results[0].ID)
		assert.Equal(t, 40.0, resp.Results[0].Latitude)
		assert.Equal(t, -70.0, resp.Results[0].Longitude)
		assert.NotContains(t, w.Body.String(), `"cell"`)
	})

	t.Run("ドライバーから乗客を検索（セル付き）", func(t *testing.T) {
		w, resp := doJSON(t, router, http.MethodGet, "/drivers/passengers?driver_id=D1&latitude=40.0&longitude=-70.0", "")
		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "P1", resp.Results[0].ID)
		assert.Len(t, resp.Results[0].Cell, 5)
	})

	t.Run("セル情報", func(t *testing.T) {
		w, _ := doJSON(t, router, http.MethodGet, "/cells/drm3b", "")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Cell model.CellView `json:"cell"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "drm3b", body.Cell.Cell)
		require.NotNil(t, body.Cell.Bounds)
	})
}

func TestLocationHandler_EmptyResultIsSuccess(t *testing.T) {
	router := newMemoryRouter(t)

	w, resp := doJSON(t, router, http.MethodGet, "/passengers/drivers?passenger_id=P1&latitude=10&longitude=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", resp.Status)
	assert.Contains(t, w.Body.String(), `"results":[]`)
}

func TestLocationHandler_Validation(t *testing.T) {
	router := newMemoryRouter(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		contains []string
	}{
		{
			name:     "IDと範囲外の緯度",
			method:   http.MethodPost,
			path:     "/drivers/location",
			body:     `{"latitude":95,"longitude":-70}`,
			contains: []string{"Id is required", "Latitude is invalid"},
		},
		{
			name:     "緯度経度なし",
			method:   http.MethodPost,
			path:     "/passengers/location",
			body:     `{"passenger_id":"P1"}`,
			contains: []string{"Latitude is required", "Longitude is required"},
		},
		{
			name:     "数値でない経度",
			method:   http.MethodGet,
			path:     "/drivers/passengers?driver_id=D1&latitude=40&longitude=abc",
			contains: []string{"Longitude is invalid"},
		},
		{
			name:     "壊れたJSON",
			method:   http.MethodPost,
			path:     "/drivers/location",
			body:     `{"driver_id":`,
			contains: []string{"Invalid JSON format"},
		},
		{
			name:     "不正なセル",
			method:   http.MethodGet,
			path:     "/cells/ailo",
			contains: []string{"Cell is invalid"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doJSON(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "failure", resp.Status)
			for _, s := range tt.contains {
				assert.Contains(t, resp.Errors, s)
			}
		})
	}
}

func TestLocationHandler_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"接続失敗", model.NewStorageError("put", model.ErrConnectionFailure, errors.New("refused")), http.StatusServiceUnavailable},
		{"タイムアウト", model.NewStorageError("get", model.ErrTimeout, context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"想定外", model.ErrUnexpected, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, brokenService{err: tt.err}, nil)

			w, resp := doJSON(t, router, http.MethodPost, "/drivers/location",
				`{"driver_id":"D1","latitude":40,"longitude":-70}`)
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, "failure", resp.Status)
			assert.NotEmpty(t, resp.Errors)

			w, _ = doJSON(t, router, http.MethodGet, "/passengers/drivers?passenger_id=P1&latitude=40&longitude=-70", "")
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestLocationHandler_CreateAgentID(t *testing.T) {
	router := newMemoryRouter(t)

	w, _ := doJSON(t, router, http.MethodPost, "/agents", `{"kind":"driver"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, model.KindDriver, model.KindOf(body.ID))

	w, resp := doJSON(t, router, http.MethodPost, "/agents", `{"kind":"robot"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Errors, "Kind is invalid")
}

func TestLocationHandler_Health(t *testing.T) {
	w, _ := doJSON(t, newTestRouter(t, nil, stubHealth{}), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w, _ = doJSON(t, newTestRouter(t, nil, stubHealth{err: errors.New("redis down")}), http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis down")
}

func TestCoordinate_UnmarshalJSON(t *testing.T) {
	tests := map[string]coordinate{
		`40.5`:     "40.5",
		`"40.5"`:   "40.5",
		`null`:     "",
		`-70`:      "-70",
		`" 12.0 "`: " 12.0 ",
	}
	for input, want := range tests {
		var c coordinate
		require.NoError(t, json.Unmarshal([]byte(input), &c), input)
		assert.Equal(t, want, c, input)
	}
}

func TestNewRouter_LogsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)
	backend := repository.NewMemoryBackend(time.Now, 0)
	t.Cleanup(func() { _ = backend.Close() })
	service := application.NewLocationService(backend.Positions, backend.Cells, application.DefaultOptions(), nil)

	router := NewRouter(NewLocationHandler(service, backend, nil), zap.New(core))

	w, _ := doJSON(t, router, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/api/health", entries[0].ContextMap()["path"])
	assert.EqualValues(t, http.StatusOK, entries[0].ContextMap()["status"])
}
