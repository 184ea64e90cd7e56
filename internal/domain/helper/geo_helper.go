package helper

import (
	"github.com/paulmach/orb"

	"GeoMatch-App/internal/domain/model"
)

// BoundToGeoPolygon セル矩形を GeoJSON Polygon に変換
func BoundToGeoPolygon(bound orb.Bound) *model.GeoPolygon {
	minLng := bound.Min.Lon()
	minLat := bound.Min.Lat()
	maxLng := bound.Max.Lon()
	maxLat := bound.Max.Lat()

	coordinates := [][][]float64{
		{
			{minLng, minLat}, // 左下
			{maxLng, minLat}, // 右下
			{maxLng, maxLat}, // 右上
			{minLng, maxLat}, // 左上
			{minLng, minLat}, // 閉じる
		},
	}

	return &model.GeoPolygon{
		Type:        "Polygon",
		Coordinates: coordinates,
	}
}
