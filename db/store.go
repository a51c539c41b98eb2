// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/scanpoint/models"
)

var ErrNotFound = errors.New("not found")

// Store persists stations and the checkpoint each one scans at
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) CreateStation(ctx context.Context, st models.Station) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO station (id, label, ip_hash, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5)
	`, st.ID, st.Label, st.IPHash, st.CreatedAt.UTC(), st.LastSeenAt.UTC())
	if err != nil {
		return fmt.Errorf("insert station: %w", err)
	}
	return nil
}

func (s *Store) GetStation(ctx context.Context, id string) (models.Station, error) {
	var st models.Station
	err := s.db.QueryRowContext(ctx, `
		SELECT id, label, ip_hash, created_at, last_seen_at
		FROM station
		WHERE id = $1
	`, id).Scan(&st.ID, &st.Label, &st.IPHash, &st.CreatedAt, &st.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Station{}, ErrNotFound
	}
	if err != nil {
		return models.Station{}, fmt.Errorf("query station: %w", err)
	}
	return st, nil
}

// TouchStation records that the station was just seen
func (s *Store) TouchStation(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE station SET last_seen_at = $1 WHERE id = $2
	`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update station last_seen_at: %w", err)
	}
	return expectRow(res)
}

// SaveCheckpoint stores the station's checkpoint, replacing any earlier choice
func (s *Store) SaveCheckpoint(ctx context.Context, stationID string, cp models.Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO selected_checkpoint (station_id, checkpoint_id, name, event_name, selected_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (station_id) DO UPDATE SET
			checkpoint_id = excluded.checkpoint_id,
			name = excluded.name,
			event_name = excluded.event_name,
			selected_at = excluded.selected_at
	`, stationID, cp.ID, cp.Name, cp.EventName, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *Store) GetCheckpoint(ctx context.Context, stationID string) (models.Checkpoint, error) {
	var cp models.Checkpoint
	err := s.db.QueryRowContext(ctx, `
		SELECT checkpoint_id, name, event_name
		FROM selected_checkpoint
		WHERE station_id = $1
	`, stationID).Scan(&cp.ID, &cp.Name, &cp.EventName)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return models.Checkpoint{}, fmt.Errorf("query checkpoint: %w", err)
	}
	return cp, nil
}

// ClearCheckpoint forgets the station's checkpoint. Clearing an unset one is not an error.
func (s *Store) ClearCheckpoint(ctx context.Context, stationID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM selected_checkpoint WHERE station_id = $1
	`, stationID)
	if err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
