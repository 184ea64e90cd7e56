// Package geocell 緯度経度を固定精度のセルIDに変換する
package geocell

import (
	"fmt"
	"math"
	"strings"

	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
)

// Precision システム全体で使うセル精度（geohash 5文字、約4.9km x 4.9km）
const Precision = 5

const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// 北極 (90) はそのままだと南端のセルに折り返されるため、直下の値に寄せる
var maxLatitude = math.Nextafter(90, 0)

// Encode 緯度経度をセルIDに変換する。範囲チェックは呼び出し側の責務
func Encode(latitude, longitude float64, precision uint) string {
	if latitude > maxLatitude {
		latitude = maxLatitude
	}
	return geohash.EncodeWithPrecision(latitude, longitude, precision)
}

// Cell システム精度でのセルID
func Cell(latitude, longitude float64) string {
	return Encode(latitude, longitude, Precision)
}

// Bounds セルIDの矩形範囲
func Bounds(cell string) (orb.Bound, error) {
	if cell == "" {
		return orb.Bound{}, fmt.Errorf("empty cell id")
	}
	if len(cell) > 12 {
		return orb.Bound{}, fmt.Errorf("cell id %q is too long", cell)
	}
	for _, r := range cell {
		if !strings.ContainsRune(base32, r) {
			return orb.Bound{}, fmt.Errorf("invalid cell id %q: unexpected %q", cell, r)
		}
	}
	box := geohash.BoundingBox(cell)
	return orb.Bound{
		Min: orb.Point{box.MinLng, box.MinLat},
		Max: orb.Point{box.MaxLng, box.MaxLat},
	}, nil
}
