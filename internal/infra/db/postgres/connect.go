package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS gate_evaluations (
  id            VARCHAR(36)  PRIMARY KEY,
  tenant_id     VARCHAR(64)  NOT NULL,
  image         VARCHAR(512) NOT NULL,
  scanners      VARCHAR(64)  NOT NULL,
  policy        VARCHAR(16)  NOT NULL,
  critical      INT NOT NULL DEFAULT 0,
  high          INT NOT NULL DEFAULT 0,
  medium        INT NOT NULL DEFAULT 0,
  low           INT NOT NULL DEFAULT 0,
  unknown       INT NOT NULL DEFAULT 0,
  outcome       VARCHAR(8)   NOT NULL,
  degraded      BOOLEAN      NOT NULL DEFAULT FALSE,
  artifact_urls JSONB        NOT NULL DEFAULT '{}',
  duration_ms   BIGINT       NOT NULL DEFAULT 0,
  created_at    TIMESTAMPTZ  NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_gate_evaluations_tenant_created ON gate_evaluations (tenant_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS gate_advice (
  id            VARCHAR(36)  PRIMARY KEY,
  tenant_id     VARCHAR(64)  NOT NULL,
  evaluation_id VARCHAR(36)  NOT NULL,
  image         VARCHAR(512) NOT NULL,
  result_json   JSONB        NOT NULL,
  created_at    TIMESTAMPTZ  NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_gate_advice_eval ON gate_advice (tenant_id, evaluation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS gate_scan_errors (
  id           BIGSERIAL    PRIMARY KEY,
  tenant_id    VARCHAR(64)  NOT NULL,
  job_id       VARCHAR(36)  NOT NULL,
  image        VARCHAR(512) NOT NULL,
  scanners     VARCHAR(64)  NOT NULL,
  phase        VARCHAR(16)  NOT NULL,
  message      TEXT         NOT NULL,
  details_json JSONB        NOT NULL,
  created_at   TIMESTAMPTZ  NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_gate_scan_errors_job ON gate_scan_errors (tenant_id, job_id, created_at)`,
}

// Migrate creates the tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
