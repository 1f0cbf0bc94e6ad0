package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vikranta/safety/backend/internal/apperr"
	"github.com/vikranta/safety/backend/internal/models"
)

const geofenceColumns = `id, name, zone_type, risk_level, polygon_data, description,
	warning_message, active, created_by, created_at, updated_at`

func (db *PostgresDB) CreateGeofence(ctx context.Context, gf *models.Geofence) error {
	query := `
		INSERT INTO geofences (` + geofenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := db.pool.Exec(ctx, query,
		gf.ID, gf.Name, gf.ZoneType, gf.RiskLevel, string(gf.Polygon), gf.Description,
		gf.WarningMessage, gf.Active, gf.CreatedBy, gf.CreatedAt, gf.UpdatedAt,
	)
	return apperr.FromDB("create geofence", err)
}

func (db *PostgresDB) GetGeofence(ctx context.Context, id uuid.UUID) (*models.Geofence, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+geofenceColumns+` FROM geofences WHERE id = $1`, id)
	gf, err := scanGeofence(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromDB("get geofence", err)
	}
	return gf, nil
}

func (db *PostgresDB) GeofenceNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM geofences WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, apperr.FromDB("geofence exists", err)
	}
	return exists, nil
}

// ListGeofences returns zones ordered by name. activeOnly drops disabled zones.
func (db *PostgresDB) ListGeofences(ctx context.Context, activeOnly bool) ([]models.Geofence, error) {
	query := `SELECT ` + geofenceColumns + ` FROM geofences`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, apperr.FromDB("list geofences", err)
	}
	defer rows.Close()

	var geofences []models.Geofence
	for rows.Next() {
		gf, err := scanGeofence(rows)
		if err != nil {
			return nil, apperr.FromDB("scan geofence", err)
		}
		geofences = append(geofences, *gf)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromDB("list geofences", err)
	}
	return geofences, nil
}

func (db *PostgresDB) ListActiveGeofences(ctx context.Context) ([]models.Geofence, error) {
	return db.ListGeofences(ctx, true)
}

func (db *PostgresDB) SetGeofenceActive(ctx context.Context, id uuid.UUID, active bool) (*models.Geofence, error) {
	query := `
		UPDATE geofences SET active = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + geofenceColumns
	gf, err := scanGeofence(db.pool.QueryRow(ctx, query, id, active))
	if err != nil {
		return nil, apperr.FromDB("set geofence active", err)
	}
	return gf, nil
}

func scanGeofence(row pgx.Row) (*models.Geofence, error) {
	var gf models.Geofence
	var polygon string
	err := row.Scan(
		&gf.ID, &gf.Name, &gf.ZoneType, &gf.RiskLevel, &polygon, &gf.Description,
		&gf.WarningMessage, &gf.Active, &gf.CreatedBy, &gf.CreatedAt, &gf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	gf.Polygon = []byte(polygon)
	return &gf, nil
}
