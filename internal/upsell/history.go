package upsell

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"upsell-workers/internal/models"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// HistoryStore is the append-only log of simulations.
type HistoryStore interface {
	Append(ctx context.Context, record *models.SimulationRecord) (int64, time.Time, error)
	List(ctx context.Context, limit int) ([]models.SimulationRecord, error)
}

const historySchema = `
CREATE TABLE IF NOT EXISTS upsell_simulations (
	id             BIGSERIAL PRIMARY KEY,
	reference      UUID NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_by     TEXT NULL,
	profile_json   JSONB NOT NULL,
	cart_skus_json JSONB NOT NULL,
	criteria_json  JSONB NOT NULL,
	upsells_json   JSONB NOT NULL,
	rationale_json JSONB NOT NULL,
	metadata_json  JSONB NOT NULL
)`

const historyIndex = `
CREATE INDEX IF NOT EXISTS idx_upsell_simulations_created
	ON upsell_simulations (created_at DESC, id DESC)`

const insertSimulationQuery = `
INSERT INTO upsell_simulations (
	reference, created_by, profile_json, cart_skus_json,
	criteria_json, upsells_json, rationale_json, metadata_json
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at`

const listSimulationsQuery = `
SELECT id, reference, created_at, created_by, profile_json, cart_skus_json,
	criteria_json, upsells_json, rationale_json, metadata_json
FROM upsell_simulations
ORDER BY created_at DESC, id DESC
LIMIT $1`

type PostgresHistoryStore struct {
	db *sql.DB
}

func NewPostgresHistoryStore(db *sql.DB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

// EnsureSchema creates the simulations table and its ordering index.
func (s *PostgresHistoryStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, historySchema); err != nil {
		return fmt.Errorf("%w: create table: %v", ErrPersistenceFailure, err)
	}
	if _, err := s.db.ExecContext(ctx, historyIndex); err != nil {
		return fmt.Errorf("%w: create index: %v", ErrPersistenceFailure, err)
	}
	return nil
}

// Append writes the record in a single insert; id and created_at come from the
// database.
func (s *PostgresHistoryStore) Append(ctx context.Context, record *models.SimulationRecord) (int64, time.Time, error) {
	docs := []interface{}{
		record.Profile,
		nonNilStrings(record.CartSKUs),
		record.Criteria,
		nonNilRecs(record.Recommendations),
		nonNilStrings(record.Rationale),
		record.MetadataUsed,
	}
	args := make([]interface{}, 0, len(docs)+2)
	args = append(args, record.Reference, nullString(record.CreatedBy))
	for _, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("%w: encode record: %v", ErrPersistenceFailure, err)
		}
		args = append(args, data)
	}

	var (
		id        int64
		createdAt time.Time
	)
	if err := s.db.QueryRowContext(ctx, insertSimulationQuery, args...).Scan(&id, &createdAt); err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: insert simulation: %v", ErrPersistenceFailure, err)
	}
	return id, createdAt, nil
}

// List returns at most limit records, newest first. limit <= 0 selects the
// default page and anything above MaxHistoryLimit is capped.
func (s *PostgresHistoryStore) List(ctx context.Context, limit int) ([]models.SimulationRecord, error) {
	limit = ClampHistoryLimit(limit)

	rows, err := s.db.QueryContext(ctx, listSimulationsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list simulations: %v", ErrPersistenceFailure, err)
	}
	defer rows.Close()

	records := make([]models.SimulationRecord, 0, limit)
	for rows.Next() {
		var rec models.SimulationRecord
		var createdBy sql.NullString
		var profile, cart, criteria, upsells, rationale, metadata []byte
		if err := rows.Scan(&rec.ID, &rec.Reference, &rec.CreatedAt, &createdBy,
			&profile, &cart, &criteria, &upsells, &rationale, &metadata); err != nil {
			return nil, fmt.Errorf("%w: scan simulation: %v", ErrPersistenceFailure, err)
		}
		if createdBy.Valid {
			v := createdBy.String
			rec.CreatedBy = &v
		}

		decode := []struct {
			data []byte
			dst  interface{}
		}{
			{profile, &rec.Profile},
			{cart, &rec.CartSKUs},
			{criteria, &rec.Criteria},
			{upsells, &rec.Recommendations},
			{rationale, &rec.Rationale},
			{metadata, &rec.MetadataUsed},
		}
		for _, d := range decode {
			if len(d.data) == 0 {
				continue
			}
			if err := json.Unmarshal(d.data, d.dst); err != nil {
				return nil, fmt.Errorf("%w: decode simulation %d: %v", ErrPersistenceFailure, rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate simulations: %v", ErrPersistenceFailure, err)
	}
	return records, nil
}

func ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilRecs(v []models.UpsellRecommendation) []models.UpsellRecommendation {
	if v == nil {
		return []models.UpsellRecommendation{}
	}
	return v
}
