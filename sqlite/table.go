package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldnotes/go-locality-picker/feature"
	"github.com/fieldnotes/go-locality-picker/locality"
	"github.com/paulmach/orb/geojson"
	database_sql "github.com/sfomuseum/go-database/sql"
	"github.com/tidwall/gjson"
)

const LOCALITIES_TABLE_NAME string = "localities"

const localities_schema = `CREATE TABLE IF NOT EXISTS %s (
	id TEXT NOT NULL PRIMARY KEY,
	name TEXT,
	town_id TEXT,
	town_name TEXT,
	department_id TEXT,
	department_code TEXT,
	latitude REAL,
	longitude REAL,
	altitude REAL,
	lastmodified INTEGER
);

CREATE INDEX IF NOT EXISTS %s_by_town ON %s (town_id);
CREATE INDEX IF NOT EXISTS %s_by_department ON %s (department_id);
CREATE INDEX IF NOT EXISTS %s_by_coords ON %s (longitude, latitude);`

// LocalitiesTable implements the sfomuseum/go-database/sql.Table interface for locality records.
type LocalitiesTable struct {
	name string
}

var _ database_sql.Table = (*LocalitiesTable)(nil)

func NewLocalitiesTable(ctx context.Context) (*LocalitiesTable, error) {

	t := &LocalitiesTable{
		name: LOCALITIES_TABLE_NAME,
	}

	return t, nil
}

// NewLocalitiesTableWithDatabase returns a new LocalitiesTable, creating it in 'db' if necessary.
func NewLocalitiesTableWithDatabase(ctx context.Context, db *sql.DB) (*LocalitiesTable, error) {

	t, err := NewLocalitiesTable(ctx)

	if err != nil {
		return nil, err
	}

	err = t.InitializeTable(ctx, db)

	if err != nil {
		return nil, err
	}

	return t, nil
}

func (t *LocalitiesTable) Name() string {
	return t.name
}

func (t *LocalitiesTable) Schema(db *sql.DB) (string, error) {
	n := t.name
	return fmt.Sprintf(localities_schema, n, n, n, n, n, n, n), nil
}

func (t *LocalitiesTable) InitializeTable(ctx context.Context, db *sql.DB) error {

	schema, err := t.Schema(db)

	if err != nil {
		return fmt.Errorf("Failed to derive schema for %s, %w", t.name, err)
	}

	_, err = db.ExecContext(ctx, schema)

	if err != nil {
		return fmt.Errorf("Failed to create %s table, %w", t.name, err)
	}

	return nil
}

// IndexRecord indexes 'i' which is expected to be either a GeoJSON point feature ([]byte) or a
// *locality.Locality.
func (t *LocalitiesTable) IndexRecord(ctx context.Context, db *sql.DB, i interface{}) error {

	var l *locality.Locality

	switch v := i.(type) {
	case []byte:

		rec, err := localityFromFeature(v)

		if err != nil {
			return err
		}

		l = rec

	case *locality.Locality:
		l = v
	default:
		return fmt.Errorf("Unsupported record type %T", i)
	}

	return t.IndexLocality(ctx, db, l)
}

// IndexLocality inserts or replaces 'l' in the table.
func (t *LocalitiesTable) IndexLocality(ctx context.Context, db *sql.DB, l *locality.Locality) error {

	if l == nil || l.Id == "" {
		return fmt.Errorf("Locality is missing an id")
	}

	q := fmt.Sprintf(`INSERT OR REPLACE INTO %s (
		id, name, town_id, town_name, department_id, department_code, latitude, longitude, altitude, lastmodified
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, t.name)

	_, err := db.ExecContext(ctx, q,
		l.Id, l.Name, l.TownId, l.TownName, l.DepartmentId, l.DepartmentCode,
		l.Latitude, l.Longitude, l.Altitude, time.Now().Unix())

	if err != nil {
		return fmt.Errorf("Failed to index locality %s, %w", l.Id, err)
	}

	return nil
}

// localityFromFeature derives a locality from a GeoJSON point feature. An optional "altitude"
// property is read too.
func localityFromFeature(body []byte) (*locality.Locality, error) {

	f, err := geojson.UnmarshalFeature(body)

	if err != nil {
		return nil, fmt.Errorf("Failed to unmarshal feature, %w", err)
	}

	geojson_fc := geojson.NewFeatureCollection()
	geojson_fc.Append(f)

	fc := feature.FromGeoJSON(geojson_fc)

	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("Feature is not a locality point")
	}

	pf := fc.Features[0]

	l := &locality.Locality{
		Id:             pf.Id,
		Name:           pf.Name,
		TownId:         pf.TownId,
		TownName:       pf.TownName,
		DepartmentId:   pf.DepartmentId,
		DepartmentCode: pf.DepartmentCode,
		Latitude:       pf.Latitude,
		Longitude:      pf.Longitude,
		Altitude:       gjson.GetBytes(body, "properties.altitude").Float(),
	}

	return l, nil
}
