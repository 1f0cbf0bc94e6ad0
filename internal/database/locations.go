package database

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vikranta/safety/backend/internal/apperr"
	"github.com/vikranta/safety/backend/internal/models"
)

// Location operations. Samples are insert-only.
func (db *PostgresDB) CreateLocationSample(ctx context.Context, s *models.LocationSample) error {
	query := `
		INSERT INTO location_samples (id, user_id, latitude, longitude, accuracy, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := db.pool.Exec(ctx, query,
		s.ID, s.UserID, s.Latitude, s.Longitude, s.Accuracy, s.Timestamp,
	)
	return apperr.FromDB("create location sample", err)
}

// GetLocationHistory returns samples since the given time, oldest first.
func (db *PostgresDB) GetLocationHistory(ctx context.Context, userID uuid.UUID, since time.Time) ([]models.LocationSample, error) {
	query := `
		SELECT id, user_id, latitude, longitude, accuracy, timestamp
		FROM location_samples
		WHERE user_id = $1 AND timestamp >= $2
		ORDER BY timestamp ASC, seq ASC
	`
	rows, err := db.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, apperr.FromDB("location history", err)
	}
	defer rows.Close()

	var samples []models.LocationSample
	for rows.Next() {
		var s models.LocationSample
		if err := rows.Scan(&s.ID, &s.UserID, &s.Latitude, &s.Longitude, &s.Accuracy, &s.Timestamp); err != nil {
			return nil, apperr.FromDB("scan location sample", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromDB("location history", err)
	}
	return samples, nil
}

// GetLatestTouristPositions returns the newest sample for every tourist that has one.
func (db *PostgresDB) GetLatestTouristPositions(ctx context.Context) ([]models.TouristPosition, error) {
	query := `
		SELECT DISTINCT ON (u.id)
			u.id, u.name, u.email, u.phone,
			l.latitude, l.longitude, l.accuracy, l.timestamp
		FROM users u
		JOIN location_samples l ON l.user_id = u.id
		WHERE u.role = 'tourist'
		ORDER BY u.id, l.timestamp DESC, l.seq DESC
	`
	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, apperr.FromDB("latest positions", err)
	}
	defer rows.Close()

	var positions []models.TouristPosition
	for rows.Next() {
		var p models.TouristPosition
		err := rows.Scan(
			&p.UserID, &p.UserName, &p.UserEmail, &p.UserPhone,
			&p.Latitude, &p.Longitude, &p.Accuracy, &p.Timestamp,
		)
		if err != nil {
			return nil, apperr.FromDB("scan position", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromDB("latest positions", err)
	}
	return positions, nil
}
