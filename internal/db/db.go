package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Each table keeps the columns the repository filters on next to the full
// entity document in state. The columns are rewritten on every save.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS stations (
  id         TEXT PRIMARY KEY,
  type       TEXT NOT NULL,
  status     TEXT NOT NULL,
  x          DOUBLE PRECISION NOT NULL,
  y          DOUBLE PRECISION NOT NULL,
  state      JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS stations_type_status_idx ON stations (type, status)`,
	`CREATE TABLE IF NOT EXISTS vehicles (
  id                 TEXT PRIMARY KEY,
  kind               TEXT NOT NULL,
  status             TEXT NOT NULL,
  assigned_route_id  TEXT NOT NULL DEFAULT '',
  current_station_id TEXT NOT NULL DEFAULT '',
  state              JSONB NOT NULL,
  updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS vehicles_route_idx ON vehicles (assigned_route_id)`,
	`CREATE INDEX IF NOT EXISTS vehicles_station_idx ON vehicles (current_station_id)`,
	`CREATE TABLE IF NOT EXISTS tickets (
  id          TEXT PRIMARY KEY,
  agent_id    TEXT NOT NULL,
  status      TEXT NOT NULL,
  valid_from  TIMESTAMPTZ NOT NULL,
  valid_until TIMESTAMPTZ,
  state       JSONB NOT NULL,
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS tickets_agent_idx ON tickets (agent_id, status)`,
	`CREATE TABLE IF NOT EXISTS routes (
  id         TEXT PRIMARY KEY,
  active     BOOLEAN NOT NULL,
  state      JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS routes_state_stations_idx ON routes USING GIN ((state->'stations') jsonb_path_ops)`,
}

// InitSchema creates the tables if they do not exist yet.
func InitSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin: %w", err)
	}
	defer tx.Rollback()
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit: %w", err)
	}
	return nil
}
