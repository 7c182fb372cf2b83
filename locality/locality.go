// Package locality fetches the full record of a single locality by id.
package locality

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Locality is the full record of a locality, including its stored reference coordinate.
type Locality struct {
	Id             string  `json:"id"`
	Name           string  `json:"name"`
	TownId         string  `json:"townId"`
	TownName       string  `json:"townName"`
	DepartmentId   string  `json:"departmentId"`
	DepartmentCode string  `json:"departmentCode"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Altitude       float64 `json:"altitude"`
}

// Point returns the locality's stored coordinate as an orb.Point (longitude, latitude).
func (l *Locality) Point() orb.Point {
	return orb.Point{l.Longitude, l.Latitude}
}

// ParseLocality decodes a locality record of the form:
//
//	{"id": "12", "name": "...", "townId": "3", "townName": "...", "departmentId": "1",
//	 "departmentCode": "01", "coordinates": {"latitude": 45.1, "longitude": 4.8, "altitude": 210}}
//
// Ids may be strings or numbers.
func ParseLocality(body []byte) (*Locality, error) {

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("Invalid JSON")
	}

	id_rsp := gjson.GetBytes(body, "id")

	if !id_rsp.Exists() || id_rsp.String() == "" {
		return nil, fmt.Errorf("Missing id property")
	}

	coords_rsp := gjson.GetBytes(body, "coordinates")

	if !coords_rsp.Exists() {
		return nil, fmt.Errorf("Missing coordinates property")
	}

	l := &Locality{
		Id:             id_rsp.String(),
		Name:           gjson.GetBytes(body, "name").String(),
		TownId:         gjson.GetBytes(body, "townId").String(),
		TownName:       gjson.GetBytes(body, "townName").String(),
		DepartmentId:   gjson.GetBytes(body, "departmentId").String(),
		DepartmentCode: gjson.GetBytes(body, "departmentCode").String(),
		Latitude:       coords_rsp.Get("latitude").Float(),
		Longitude:      coords_rsp.Get("longitude").Float(),
		Altitude:       coords_rsp.Get("altitude").Float(),
	}

	return l, nil
}

// MarshalLocality encodes 'l' in the form read by ParseLocality.
func MarshalLocality(l *Locality) ([]byte, error) {

	body := []byte(`{}`)

	updates := []struct {
		path  string
		value any
	}{
		{"id", l.Id},
		{"name", l.Name},
		{"townId", l.TownId},
		{"townName", l.TownName},
		{"departmentId", l.DepartmentId},
		{"departmentCode", l.DepartmentCode},
		{"coordinates.latitude", l.Latitude},
		{"coordinates.longitude", l.Longitude},
		{"coordinates.altitude", l.Altitude},
	}

	for _, u := range updates {

		var err error
		body, err = sjson.SetBytes(body, u.path, u.value)

		if err != nil {
			return nil, fmt.Errorf("Failed to assign %s, %w", u.path, err)
		}
	}

	return body, nil
}
