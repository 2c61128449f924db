package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/fenilmodi00/fingerprint-kiosk/models"
	"github.com/fenilmodi00/fingerprint-kiosk/shared"
	"github.com/sirupsen/logrus"
)

// PostgresResultStore keeps the relay copy in postgres so that several kiosk
// server instances can share it and results survive a restart
type PostgresResultStore struct {
	DB  *sql.DB
	now func() time.Time
}

// NewPostgresResultStore creates a store over an open connection. The
// kiosk_result_relay table must exist (see database.Migrate).
func NewPostgresResultStore(db *sql.DB) *PostgresResultStore {
	return &PostgresResultStore{
		DB:  db,
		now: time.Now,
	}
}

// Put upserts the envelope; last writer wins
func (s *PostgresResultStore) Put(ctx context.Context, token string, envelope *models.ResultEnvelope, ttl time.Duration) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return shared.NewInternalError("ENVELOPE_ENCODE_FAILED", "failed to encode result envelope", "PostgresResultStore", "Put", err)
	}

	var expiresAt sql.NullTime
	if expiry := expiryFor(s.now(), ttl); !expiry.IsZero() {
		expiresAt = sql.NullTime{Time: expiry, Valid: true}
	}

	query := `
		INSERT INTO kiosk_result_relay (session_id, envelope, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id) DO UPDATE SET
			envelope = EXCLUDED.envelope,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at
	`

	if _, err := s.DB.ExecContext(ctx, query, token, payload, expiresAt); err != nil {
		return shared.NewServiceError(shared.ErrorCategoryDatabase, "RESULT_WRITE_FAILED", "failed to store result", "PostgresResultStore", "Put", true, err)
	}

	return nil
}

// Get reads the envelope and deletes it when it has expired
func (s *PostgresResultStore) Get(ctx context.Context, token string) (*models.ResultEnvelope, error) {
	query := `
		SELECT envelope, expires_at
		FROM kiosk_result_relay
		WHERE session_id = $1
	`

	var payload []byte
	var expiresAt sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, token).Scan(&payload, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, shared.NewServiceError(shared.ErrorCategoryDatabase, "RESULT_READ_FAILED", "failed to read result", "PostgresResultStore", "Get", true, err)
	}

	if expiresAt.Valid && s.now().After(expiresAt.Time) {
		if _, err := s.DB.ExecContext(ctx,
			`DELETE FROM kiosk_result_relay WHERE session_id = $1 AND expires_at = $2`,
			token, expiresAt.Time,
		); err != nil {
			logrus.WithFields(logrus.Fields{
				"component":  "PostgresResultStore",
				"session_id": token,
			}).WithError(err).Warn("Failed to purge expired result")
		}
		return nil, ErrResultNotFound
	}

	var envelope models.ResultEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, shared.NewInternalError("ENVELOPE_DECODE_FAILED", "stored result is corrupt", "PostgresResultStore", "Get", err)
	}

	return &envelope, nil
}

// Delete removes the entry for token
func (s *PostgresResultStore) Delete(ctx context.Context, token string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM kiosk_result_relay WHERE session_id = $1`, token); err != nil {
		return shared.NewServiceError(shared.ErrorCategoryDatabase, "RESULT_DELETE_FAILED", "failed to delete result", "PostgresResultStore", "Delete", true, err)
	}
	return nil
}

// PurgeExpired removes expired rows
func (s *PostgresResultStore) PurgeExpired(ctx context.Context) (int, error) {
	result, err := s.DB.ExecContext(ctx,
		`DELETE FROM kiosk_result_relay WHERE expires_at IS NOT NULL AND expires_at < $1`,
		s.now(),
	)
	if err != nil {
		return 0, shared.NewServiceError(shared.ErrorCategoryDatabase, "RESULT_PURGE_FAILED", "failed to purge expired results", "PostgresResultStore", "PurgeExpired", true, err)
	}

	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}
