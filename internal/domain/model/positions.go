package model

import "time"

// AgentPosition エージェントの最新位置（TTL付き）
type AgentPosition struct {
	ID        string    `json:"id"`                  // エージェントID（先頭1文字が種別タグ）
	Latitude  float64   `json:"latitude"`            // 緯度
	Longitude float64   `json:"longitude"`           // 経度
	Cell      string    `json:"cell"`                // geohashセルID
	ExpiresAt time.Time `json:"expires_at,omitzero"` // 有効期限
}

// Expired 指定時刻で期限切れかどうか
func (p *AgentPosition) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// NearbyAgent 近傍検索の結果1件
type NearbyAgent struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Cell      string  `json:"cell,omitempty"`
}

// CellView 運用確認用のセル情報
type CellView struct {
	Cell           string      `json:"cell"`
	Bounds         *GeoPolygon `json:"bounds"`
	DriverCount    int         `json:"driver_count"`
	PassengerCount int         `json:"passenger_count"`
}

// GeoPolygon GeoJSON Polygon 表現
type GeoPolygon struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
}
