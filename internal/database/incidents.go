package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vikranta/safety/backend/internal/apperr"
	"github.com/vikranta/safety/backend/internal/models"
)

const incidentColumns = `id, user_id, type, status, priority, latitude, longitude, address,
	description, responder_notes, assigned_to, created_at, updated_at, acknowledged_at, resolved_at`

// CreateIncident inserts inc and runs confirm before committing. If confirm
// fails the insert is rolled back, so no incident exists whose creation-time
// side effect did not happen.
func (db *PostgresDB) CreateIncident(ctx context.Context, inc *models.Incident, confirm func(ctx context.Context) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return apperr.FromDB("begin create incident", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO incidents (` + incidentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = tx.Exec(ctx, query,
		inc.ID, inc.UserID, inc.Type, inc.Status, inc.Priority, inc.Latitude, inc.Longitude, inc.Address,
		inc.Description, inc.ResponderNotes, inc.AssignedTo, inc.CreatedAt, inc.UpdatedAt,
		inc.AcknowledgedAt, inc.ResolvedAt,
	)
	if err != nil {
		return apperr.FromDB("create incident", err)
	}

	if confirm != nil {
		if err := confirm(ctx); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.FromDB("commit create incident", err)
	}
	return nil
}

// UpdateIncident locks the row, applies mutate and writes the result back in
// one transaction. Concurrent updates to one incident are serialized.
func (db *PostgresDB) UpdateIncident(ctx context.Context, id uuid.UUID, mutate func(inc *models.Incident) error) (*models.Incident, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.FromDB("begin update incident", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1 FOR UPDATE`, id)
	inc, err := scanIncident(row)
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("incident not found")
	}
	if err != nil {
		return nil, apperr.FromDB("lock incident", err)
	}

	if err := mutate(inc); err != nil {
		return nil, err
	}

	query := `
		UPDATE incidents
		SET status = $2, priority = $3, responder_notes = $4, assigned_to = $5,
			updated_at = $6, acknowledged_at = $7, resolved_at = $8
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, query,
		inc.ID, inc.Status, inc.Priority, inc.ResponderNotes, inc.AssignedTo,
		inc.UpdatedAt, inc.AcknowledgedAt, inc.ResolvedAt,
	)
	if err != nil {
		return nil, apperr.FromDB("update incident", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.FromDB("commit update incident", err)
	}
	return inc, nil
}

func (db *PostgresDB) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	inc, err := scanIncident(db.pool.QueryRow(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromDB("get incident", err)
	}
	return inc, nil
}

// ListIncidents returns incidents newest first.
func (db *PostgresDB) ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	var conds []string
	var args []interface{}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.FromDB("list incidents", err)
	}
	defer rows.Close()

	var incidents []models.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, apperr.FromDB("scan incident", err)
		}
		incidents = append(incidents, *inc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.FromDB("list incidents", err)
	}
	return incidents, nil
}

func scanIncident(row pgx.Row) (*models.Incident, error) {
	var inc models.Incident
	err := row.Scan(
		&inc.ID, &inc.UserID, &inc.Type, &inc.Status, &inc.Priority, &inc.Latitude, &inc.Longitude,
		&inc.Address, &inc.Description, &inc.ResponderNotes, &inc.AssignedTo, &inc.CreatedAt,
		&inc.UpdatedAt, &inc.AcknowledgedAt, &inc.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inc, nil
}
