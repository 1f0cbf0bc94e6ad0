package database

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vikranta/safety/backend/internal/apperr"
	"github.com/vikranta/safety/backend/internal/models"
)

//go:embed schema.sql
var schemaSQL string

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	// Set connection pool settings
	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// NewPostgresDBFromPool wraps an existing pool, used by integration tests.
func NewPostgresDBFromPool(pool *pgxpool.Pool) *PostgresDB {
	return &PostgresDB{pool: pool}
}

func (db *PostgresDB) Close() {
	db.pool.Close()
}

// Migrate creates missing tables and indexes. Statements are idempotent.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// User operations
func (db *PostgresDB) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name, phone, role, emergency_contact, fcm_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := db.pool.Exec(ctx, query,
		user.ID, user.Email, user.Name, user.Phone, user.Role,
		user.EmergencyContact, user.FCMToken, user.CreatedAt,
	)
	return apperr.FromDB("create user", err)
}

func (db *PostgresDB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, email, name, phone, role, emergency_contact, fcm_token, created_at
		FROM users WHERE id = $1
	`
	var user models.User
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.Phone, &user.Role,
		&user.EmergencyContact, &user.FCMToken, &user.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FromDB("get user", err)
	}
	return &user, nil
}

// UpdateUserProfile changes the non-nil fields and returns the updated user.
func (db *PostgresDB) UpdateUserProfile(ctx context.Context, id uuid.UUID, update models.ProfileUpdate) (*models.User, error) {
	query := `
		UPDATE users SET
			name = COALESCE($2, name),
			phone = COALESCE($3, phone),
			emergency_contact = COALESCE($4, emergency_contact),
			fcm_token = COALESCE($5, fcm_token)
		WHERE id = $1
		RETURNING id, email, name, phone, role, emergency_contact, fcm_token, created_at
	`
	var user models.User
	err := db.pool.QueryRow(ctx, query, id, update.Name, update.Phone, update.EmergencyContact, update.FCMToken).Scan(
		&user.ID, &user.Email, &user.Name, &user.Phone, &user.Role,
		&user.EmergencyContact, &user.FCMToken, &user.CreatedAt,
	)
	if err != nil {
		return nil, apperr.FromDB("update user profile", err)
	}
	return &user, nil
}
