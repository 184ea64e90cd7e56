package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"GeoMatch-App/internal/application"
	"GeoMatch-App/internal/domain/model"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// HealthChecker バックエンドの疎通確認
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// LocationHandler ドライバー・乗客の位置更新と近傍検索のHTTPハンドラー
type LocationHandler struct {
	locationService application.LocationService
	health          HealthChecker
	logger          *zap.Logger
}

// NewLocationHandler LocationHandlerの新しいインスタンスを作成
func NewLocationHandler(locationService application.LocationService, health HealthChecker, logger *zap.Logger) *LocationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationHandler{
		locationService: locationService,
		health:          health,
		logger:          logger,
	}
}

// RegisterRoutes ルートを登録する
func (h *LocationHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/drivers/location", h.UpdateDriverLocation)
	r.GET("/drivers/passengers", h.FindPassengers)
	r.POST("/passengers/location", h.UpdatePassengerLocation)
	r.GET("/passengers/drivers", h.FindDrivers)
	r.POST("/agents", h.CreateAgentID)
	r.GET("/cells/:cell", h.GetCell)
	r.GET("/api/health", h.Health)
}

// coordinate 数値・文字列どちらのJSONでも受け付ける緯度経度
type coordinate string

func (c *coordinate) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*c = ""
	case strings.HasPrefix(raw, `"`):
		s, err := strconv.Unquote(raw)
		if err != nil {
			return err
		}
		*c = coordinate(s)
	default:
		// 数値以外（true, {} など）はそのまま渡して検証で弾く
		*c = coordinate(raw)
	}
	return nil
}

type driverLocationRequest struct {
	DriverID  string     `json:"driver_id"`
	Latitude  coordinate `json:"latitude"`
	Longitude coordinate `json:"longitude"`
}

type passengerLocationRequest struct {
	PassengerID string     `json:"passenger_id"`
	Latitude    coordinate `json:"latitude"`
	Longitude   coordinate `json:"longitude"`
}

type createAgentRequest struct {
	Kind string `json:"kind"`
}

// UpdateDriverLocation POST /drivers/location - ドライバーの位置更新
func (h *LocationHandler) UpdateDriverLocation(c *gin.Context) {
	var req driverLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadJSON(c, err)
		return
	}
	h.updateLocation(c, req.DriverID, string(req.Latitude), string(req.Longitude))
}

// UpdatePassengerLocation POST /passengers/location - 乗客の位置更新
func (h *LocationHandler) UpdatePassengerLocation(c *gin.Context) {
	var req passengerLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadJSON(c, err)
		return
	}
	h.updateLocation(c, req.PassengerID, string(req.Latitude), string(req.Longitude))
}

func (h *LocationHandler) updateLocation(c *gin.Context, agentID, latitude, longitude string) {
	if err := h.locationService.UpdateLocation(c.Request.Context(), agentID, latitude, longitude); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess})
}

// FindPassengers GET /drivers/passengers - ドライバーと同じセルにいる乗客一覧
func (h *LocationHandler) FindPassengers(c *gin.Context) {
	results, err := h.locationService.FindNearby(c.Request.Context(),
		c.Query("driver_id"), c.Query("latitude"), c.Query("longitude"), model.KindPassenger)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "results": results})
}

// FindDrivers GET /passengers/drivers - 乗客と同じセルにいるドライバー一覧（セルは返さない）
func (h *LocationHandler) FindDrivers(c *gin.Context) {
	results, err := h.locationService.FindNearby(c.Request.Context(),
		c.Query("passenger_id"), c.Query("latitude"), c.Query("longitude"), model.KindDriver)
	if err != nil {
		h.respondError(c, err)
		return
	}
	for i := range results {
		results[i].Cell = ""
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "results": results})
}

// CreateAgentID POST /agents - 種別タグ付きのIDを払い出す
func (h *LocationHandler) CreateAgentID(c *gin.Context) {
	var req createAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBadJSON(c, err)
		return
	}
	kind, err := model.ParseKind(req.Kind)
	if err != nil {
		h.respondError(c, &model.ValidationError{Problems: []string{"Kind is invalid"}})
		return
	}
	id, err := model.NewAgentID(kind)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": statusSuccess, "id": id})
}

// GetCell GET /cells/:cell - セルの範囲とメンバー数
func (h *LocationHandler) GetCell(c *gin.Context) {
	view, err := h.locationService.DescribeCell(c.Request.Context(), c.Param("cell"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSuccess, "cell": view})
}

// Health GET /api/health
func (h *LocationHandler) Health(c *gin.Context) {
	if h.health != nil {
		if err := h.health.HealthCheck(c.Request.Context()); err != nil {
			h.logger.Warn("⚠️ health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "errors": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "GeoMatch-App"})
}

func (h *LocationHandler) respondBadJSON(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"status": statusFailure,
		"errors": "Invalid JSON format: " + err.Error(),
	})
}

// respondError エラー種別をHTTPステータスに対応させる
func (h *LocationHandler) respondError(c *gin.Context, err error) {
	status := statusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("❌ request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"status": statusFailure, "errors": err.Error()})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
