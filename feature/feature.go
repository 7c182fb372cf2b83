// Package feature provides the read-only collection of locality point features backing the
// locality picker, and the sources it can be loaded from.
package feature

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// PointFeature is a single locality, tagged with its parent town and department.
type PointFeature struct {
	Id             string  `json:"id"`
	TownId         string  `json:"townId"`
	DepartmentId   string  `json:"departmentId"`
	TownName       string  `json:"townName"`
	DepartmentCode string  `json:"departmentCode"`
	Name           string  `json:"name"`
	Longitude      float64 `json:"longitude"`
	Latitude       float64 `json:"latitude"`
}

// Point returns the feature's stored coordinate as an orb.Point (longitude, latitude).
func (f *PointFeature) Point() orb.Point {
	return orb.Point{f.Longitude, f.Latitude}
}

// FeatureCollection is the full set of known localities.
type FeatureCollection struct {
	Features []*PointFeature
}

// Points returns the coordinates of every feature in 'features'.
func Points(features []*PointFeature) []orb.Point {

	points := make([]orb.Point, len(features))

	for idx, f := range features {
		points[idx] = f.Point()
	}

	return points
}

// UnmarshalFeatureCollection parses a GeoJSON FeatureCollection of locality points. Features
// without an id or without a Point geometry are skipped.
func UnmarshalFeatureCollection(body []byte) (*FeatureCollection, error) {

	geojson_fc, err := geojson.UnmarshalFeatureCollection(body)

	if err != nil {
		return nil, fmt.Errorf("Failed to unmarshal feature collection, %w", err)
	}

	return FromGeoJSON(geojson_fc), nil
}

// FromGeoJSON derives a FeatureCollection from an orb/geojson FeatureCollection.
func FromGeoJSON(geojson_fc *geojson.FeatureCollection) *FeatureCollection {

	features := make([]*PointFeature, 0, len(geojson_fc.Features))

	for idx, f := range geojson_fc.Features {

		pt, ok := f.Geometry.(orb.Point)

		if !ok {
			slog.Debug("Skip feature without point geometry", "offset", idx)
			continue
		}

		id := propertyString(f.Properties, "id")

		if id == "" && f.ID != nil {
			id = stringify(f.ID)
		}

		if id == "" {
			slog.Debug("Skip feature without id", "offset", idx)
			continue
		}

		pf := &PointFeature{
			Id:             id,
			Name:           propertyString(f.Properties, "name"),
			TownId:         propertyString(f.Properties, "townId"),
			TownName:       propertyString(f.Properties, "townName"),
			DepartmentId:   propertyString(f.Properties, "departmentId"),
			DepartmentCode: propertyString(f.Properties, "departmentCode"),
			Longitude:      pt.Lon(),
			Latitude:       pt.Lat(),
		}

		features = append(features, pf)
	}

	return &FeatureCollection{
		Features: features,
	}
}

// ToGeoJSON encodes 'fc' as an orb/geojson FeatureCollection using the same property names
// UnmarshalFeatureCollection reads.
func (fc *FeatureCollection) ToGeoJSON() *geojson.FeatureCollection {

	geojson_fc := geojson.NewFeatureCollection()

	for _, pf := range fc.Features {

		f := geojson.NewFeature(pf.Point())
		f.ID = pf.Id

		f.Properties["id"] = pf.Id
		f.Properties["name"] = pf.Name
		f.Properties["townId"] = pf.TownId
		f.Properties["townName"] = pf.TownName
		f.Properties["departmentId"] = pf.DepartmentId
		f.Properties["departmentCode"] = pf.DepartmentCode

		geojson_fc.Append(f)
	}

	return geojson_fc
}

func propertyString(props geojson.Properties, key string) string {

	v, ok := props[key]

	if !ok || v == nil {
		return ""
	}

	return stringify(v)
}

// ids arrive as strings or as JSON numbers depending on the backend
func stringify(v any) string {

	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
