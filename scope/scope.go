// Package scope derives the active administrative selection (locality, town, department or
// none) from the values of the inventory form.
package scope

import (
	"fmt"
)

// Kind is the administrative level of a Scope.
type Kind string

const (
	KindNone       Kind = ""
	KindLocality   Kind = "locality"
	KindTown       Kind = "town"
	KindDepartment Kind = "department"
)

// Scope is the administrative selection driving which points are framed on the map.
type Scope struct {
	Kind Kind   `json:"kind,omitempty"`
	Id   string `json:"id,omitempty"`
}

// None is the empty scope.
var None = Scope{}

// IsNone reports whether no scope is active.
func (s Scope) IsNone() bool {
	return s.Kind == KindNone
}

func (s Scope) String() string {

	if s.IsNone() {
		return "none"
	}

	return fmt.Sprintf("%s#%s", s.Kind, s.Id)
}

type Department struct {
	Id   string
	Code string
}

type Town struct {
	Id           string
	Name         string
	DepartmentId string
}

type Locality struct {
	Id           string
	Name         string
	TownId       string
	DepartmentId string
}

// FormState is the set of administrative fields of the inventory form. A nil field is unset.
// Parent ids on Town and Locality are optional; when present they are used to detect values
// left over from a previous, broader selection.
type FormState struct {
	Department *Department
	Town       *Town
	Locality   *Locality
}

// Resolve returns the active Scope for 'fs'. Precedence is locality, then town, then
// department, then none. A town whose department contradicts the department field is stale,
// as is a locality whose town or department contradicts the corresponding field (or whose
// town is itself stale); stale fields are ignored.
func Resolve(fs FormState) Scope {

	department_ok := fs.Department != nil && fs.Department.Id != ""

	town_ok := fs.Town != nil && fs.Town.Id != ""

	if town_ok && department_ok && contradicts(fs.Town.DepartmentId, fs.Department.Id) {
		town_ok = false
	}

	locality_ok := fs.Locality != nil && fs.Locality.Id != ""

	if locality_ok && fs.Town != nil && !town_ok {
		locality_ok = false
	}

	if locality_ok && town_ok && contradicts(fs.Locality.TownId, fs.Town.Id) {
		locality_ok = false
	}

	if locality_ok && department_ok && contradicts(fs.Locality.DepartmentId, fs.Department.Id) {
		locality_ok = false
	}

	switch {
	case locality_ok:
		return Scope{Kind: KindLocality, Id: fs.Locality.Id}
	case town_ok:
		return Scope{Kind: KindTown, Id: fs.Town.Id}
	case department_ok:
		return Scope{Kind: KindDepartment, Id: fs.Department.Id}
	default:
		return None
	}
}

func contradicts(parent_id string, field_id string) bool {
	return parent_id != "" && parent_id != field_id
}
