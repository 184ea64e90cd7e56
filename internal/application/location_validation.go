package application

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"GeoMatch-App/internal/domain/model"
)

var validate = validator.New()

const (
	latitudeRange  = "gte=-90,lte=90"
	longitudeRange = "gte=-180,lte=180"
)

// validateLocationInput ID・緯度・経度を検証する。最初の違反で止めず、すべての違反を集める
func validateLocationInput(agentID, latitude, longitude string) (float64, float64, error) {
	problems := &model.ValidationError{}
	lat, lng := parseLocation(agentID, latitude, longitude, problems)
	return lat, lng, problems.OrNil()
}

// validateQueryInput 検索用。検索する種別の違反も同じ一覧に含める
func validateQueryInput(agentID, latitude, longitude string, want model.Kind) (float64, float64, error) {
	problems := &model.ValidationError{}
	lat, lng := parseLocation(agentID, latitude, longitude, problems)
	checkKind(want, problems)
	return lat, lng, problems.OrNil()
}

// validatePositionInput 数値で受け取った場合の検証
func validatePositionInput(agentID string, latitude, longitude float64) error {
	problems := &model.ValidationError{}
	checkPosition(agentID, latitude, longitude, problems)
	return problems.OrNil()
}

func validatePositionQuery(agentID string, latitude, longitude float64, want model.Kind) error {
	problems := &model.ValidationError{}
	checkPosition(agentID, latitude, longitude, problems)
	checkKind(want, problems)
	return problems.OrNil()
}

func parseLocation(agentID, latitude, longitude string, problems *model.ValidationError) (float64, float64) {
	checkID(agentID, problems)
	lat := parseCoordinate("Latitude", latitude, latitudeRange, problems)
	lng := parseCoordinate("Longitude", longitude, longitudeRange, problems)
	return lat, lng
}

func checkPosition(agentID string, latitude, longitude float64, problems *model.ValidationError) {
	checkID(agentID, problems)
	checkRange("Latitude", latitude, latitudeRange, problems)
	checkRange("Longitude", longitude, longitudeRange, problems)
}

func checkID(agentID string, problems *model.ValidationError) {
	if strings.TrimSpace(agentID) == "" {
		problems.Add("Id is required")
	}
}

func checkKind(want model.Kind, problems *model.ValidationError) {
	if want != model.KindDriver && want != model.KindPassenger {
		problems.Add("Kind is invalid")
	}
}

func parseCoordinate(name, raw, rangeTag string, problems *model.ValidationError) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		problems.Add(name + " is required")
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		problems.Add(name + " is invalid")
		return 0
	}
	checkRange(name, value, rangeTag, problems)
	return value
}

func checkRange(name string, value float64, rangeTag string, problems *model.ValidationError) {
	if math.IsNaN(value) || math.IsInf(value, 0) || validate.Var(value, rangeTag) != nil {
		problems.Add(name + " is invalid")
	}
}
