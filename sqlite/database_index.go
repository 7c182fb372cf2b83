package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/fieldnotes/go-locality-picker/feature"
	"github.com/fieldnotes/go-locality-picker/locality"
	"github.com/paulmach/orb"
	database_sql "github.com/sfomuseum/go-database/sql"
)

// ErrNotFound is returned when a locality is not present in the database.
var ErrNotFound = locality.ErrNotFound

// IndexFeature will index a locality GeoJSON Feature record, defined in 'body', in the database.
// The feature must have a Point geometry and an id; an optional "altitude" property is stored too.
func (r *SQLiteDatabase) IndexFeature(ctx context.Context, body []byte) error {

	l, err := localityFromFeature(body)

	if err != nil {
		return err
	}

	return r.IndexLocality(ctx, l)
}

// IndexLocality will insert or replace 'l' in the database.
func (r *SQLiteDatabase) IndexLocality(ctx context.Context, l *locality.Locality) error {

	if l.Id == "" {
		return fmt.Errorf("Locality is missing an id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tables := []database_sql.Table{
		r.localities_table,
	}

	err := database_sql.IndexRecord(ctx, r.db, l, tables...)

	if err != nil {
		return fmt.Errorf("Failed to index record, %w", err)
	}

	r.gocache.Delete(l.Id)
	return nil
}

// RemoveFeature will remove the database record with ID 'id' from the database.
func (r *SQLiteDatabase) RemoveFeature(ctx context.Context, id string) error {

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)

	if err != nil {
		return fmt.Errorf("Failed to create transaction, %w", err)
	}

	defer tx.Rollback()

	q := fmt.Sprintf("DELETE FROM %s WHERE id = ?", LOCALITIES_TABLE_NAME)

	stmt, err := tx.PrepareContext(ctx, q)

	if err != nil {
		return fmt.Errorf("Failed to create query statement for %s, %w", LOCALITIES_TABLE_NAME, err)
	}

	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, id)

	if err != nil {
		return fmt.Errorf("Failed execute query statement for %s, %w", LOCALITIES_TABLE_NAME, err)
	}

	err = tx.Commit()

	if err != nil {
		return fmt.Errorf("Failed to commit transaction, %w", err)
	}

	r.gocache.Delete(id)
	return nil
}

// Load returns every locality in the database as a feature collection.
func (r *SQLiteDatabase) Load(ctx context.Context) (*feature.FeatureCollection, error) {

	features := make([]*feature.PointFeature, 0)

	for l, err := range r.Localities(ctx) {

		if err != nil {
			return nil, err
		}

		features = append(features, pointFeature(l))
	}

	fc := &feature.FeatureCollection{
		Features: features,
	}

	return fc, nil
}

// Localities yields every locality in the database, ordered by id.
func (r *SQLiteDatabase) Localities(ctx context.Context) iter.Seq2[*locality.Locality, error] {

	q := fmt.Sprintf("SELECT id, name, town_id, town_name, department_id, department_code, latitude, longitude, altitude FROM %s ORDER BY id", LOCALITIES_TABLE_NAME)
	return r.query(ctx, q)
}

// Intersects yields the localities whose coordinate falls inside 'rect'.
func (r *SQLiteDatabase) Intersects(ctx context.Context, rect orb.Bound) iter.Seq2[*locality.Locality, error] {

	q := fmt.Sprintf("SELECT id, name, town_id, town_name, department_id, department_code, latitude, longitude, altitude FROM %s WHERE longitude >= ? AND longitude <= ? AND latitude >= ? AND latitude <= ? ORDER BY id", LOCALITIES_TABLE_NAME)

	minx := rect.Left()
	miny := rect.Bottom()
	maxx := rect.Right()
	maxy := rect.Top()

	return r.query(ctx, q, minx, maxx, miny, maxy)
}

// Locality returns the locality with id 'id'.
func (r *SQLiteDatabase) Locality(ctx context.Context, id string) (*locality.Locality, error) {

	q := fmt.Sprintf("SELECT id, name, town_id, town_name, department_id, department_code, latitude, longitude, altitude FROM %s WHERE id = ?", LOCALITIES_TABLE_NAME)

	row := r.db.QueryRowContext(ctx, q, id)

	l, err := scanLocality(row)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w, %s", ErrNotFound, id)
	}

	if err != nil {
		return nil, err
	}

	return l, nil
}

// Fetch implements the locality.Fetcher interface.
func (r *SQLiteDatabase) Fetch(ctx context.Context, id string) (*locality.Locality, error) {
	return r.Locality(ctx, id)
}

func (r *SQLiteDatabase) query(ctx context.Context, q string, args ...any) iter.Seq2[*locality.Locality, error] {

	return func(yield func(*locality.Locality, error) bool) {

		logger := slog.Default()
		logger = logger.With("table", LOCALITIES_TABLE_NAME)

		t1 := time.Now()

		defer func() {
			logger.Debug("Time to query localities", "time", time.Since(t1))
		}()

		r.mu.RLock()
		defer r.mu.RUnlock()

		rows, err := r.db.QueryContext(ctx, q, args...)

		if err != nil {
			yield(nil, fmt.Errorf("SQL query failed, %w", err))
			return
		}

		defer rows.Close()

		for rows.Next() {

			l, err := scanLocality(rows)

			if err != nil {
				yield(nil, err)
				return
			}

			if !yield(l, nil) {
				return
			}
		}

		err = rows.Err()

		if err != nil {
			yield(nil, fmt.Errorf("Failed to iterate rows, %w", err))
		}
	}
}

type scanner interface {
	Scan(...any) error
}

func scanLocality(row scanner) (*locality.Locality, error) {

	var id string
	var name sql.NullString
	var town_id sql.NullString
	var town_name sql.NullString
	var department_id sql.NullString
	var department_code sql.NullString
	var latitude float64
	var longitude float64
	var altitude sql.NullFloat64

	err := row.Scan(&id, &name, &town_id, &town_name, &department_id, &department_code, &latitude, &longitude, &altitude)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if err != nil {
		return nil, fmt.Errorf("Result row scan failed, %w", err)
	}

	l := &locality.Locality{
		Id:             id,
		Name:           name.String,
		TownId:         town_id.String,
		TownName:       town_name.String,
		DepartmentId:   department_id.String,
		DepartmentCode: department_code.String,
		Latitude:       latitude,
		Longitude:      longitude,
		Altitude:       altitude.Float64,
	}

	return l, nil
}

func pointFeature(l *locality.Locality) *feature.PointFeature {

	return &feature.PointFeature{
		Id:             l.Id,
		Name:           l.Name,
		TownId:         l.TownId,
		TownName:       l.TownName,
		DepartmentId:   l.DepartmentId,
		DepartmentCode: l.DepartmentCode,
		Longitude:      l.Longitude,
		Latitude:       l.Latitude,
	}
}
