package feature

import (
	"testing"
)

const localities_geojson = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 1]}, "properties": {"id": "A", "name": "Les Bruyères", "townId": "T1", "townName": "Saint-Martin", "departmentId": "D1", "departmentCode": "01"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {"id": 12, "name": "La Combe", "townId": 7, "townName": "Saint-Martin", "departmentId": 3, "departmentCode": "01"}},
    {"type": "Feature", "id": "C", "geometry": {"type": "Point", "coordinates": [2, 1]}, "properties": {"name": "Le Moulin", "townId": "T1"}},
    {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[0, 0], [1, 1]]}, "properties": {"id": "L"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [3, 3]}, "properties": {"name": "No id"}}
  ]
}`

func TestUnmarshalFeatureCollection(t *testing.T) {

	fc, err := UnmarshalFeatureCollection([]byte(localities_geojson))

	if err != nil {
		t.Fatalf("Failed to unmarshal feature collection, %v", err)
	}

	if len(fc.Features) != 3 {
		t.Fatalf("Expected 3 features, got %d", len(fc.Features))
	}

	a := fc.Features[0]

	if a.Id != "A" || a.TownId != "T1" || a.DepartmentId != "D1" || a.DepartmentCode != "01" {
		t.Fatalf("Unexpected properties for first feature: %+v", a)
	}

	if a.Longitude != 1 || a.Latitude != 1 {
		t.Fatalf("Unexpected coordinate for first feature: %v", a.Point())
	}

	b := fc.Features[1]

	if b.Id != "12" || b.TownId != "7" || b.DepartmentId != "3" {
		t.Fatalf("Expected numeric ids to be stringified, got %+v", b)
	}

	if fc.Features[2].Id != "C" {
		t.Fatalf("Expected feature id to fall back to top-level id, got '%s'", fc.Features[2].Id)
	}
}

func TestUnmarshalFeatureCollectionInvalid(t *testing.T) {

	_, err := UnmarshalFeatureCollection([]byte(`{"type": "Feature"`))

	if err == nil {
		t.Fatalf("Expected invalid GeoJSON to fail")
	}
}

func TestToGeoJSON(t *testing.T) {

	fc, err := UnmarshalFeatureCollection([]byte(localities_geojson))

	if err != nil {
		t.Fatalf("Failed to unmarshal feature collection, %v", err)
	}

	body, err := fc.ToGeoJSON().MarshalJSON()

	if err != nil {
		t.Fatalf("Failed to marshal feature collection, %v", err)
	}

	fc2, err := UnmarshalFeatureCollection(body)

	if err != nil {
		t.Fatalf("Failed to unmarshal encoded collection, %v", err)
	}

	if len(fc2.Features) != len(fc.Features) {
		t.Fatalf("Expected %d features, got %d", len(fc.Features), len(fc2.Features))
	}

	if *fc2.Features[1] != *fc.Features[1] {
		t.Fatalf("Expected %+v, got %+v", fc.Features[1], fc2.Features[1])
	}
}
