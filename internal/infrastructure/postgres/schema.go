package postgres

import "context"

// schemaStatements creates the tables spec.md §6 names: domains,
// requests, errors, versions, and the generic module_records table
// that stands in for the per-module module_<Name> tables individual
// modules would otherwise own (out of scope here — see SPEC_FULL.md
// §10).
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS domains (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		state      TEXT NOT NULL DEFAULT 'permitted',
		comment    TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS requests (
		id         BIGSERIAL PRIMARY KEY,
		domain_id  BIGINT NOT NULL REFERENCES domains(id),
		state      TEXT NOT NULL DEFAULT 'queued',
		comment    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS requests_domain_id_idx ON requests(domain_id, id DESC)`,
	`CREATE TABLE IF NOT EXISTS errors (
		id         BIGSERIAL PRIMARY KEY,
		request_id BIGINT NOT NULL REFERENCES requests(id),
		module     TEXT NOT NULL,
		comment    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS versions (
		module     TEXT PRIMARY KEY,
		version    INT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS module_records (
		id         BIGSERIAL PRIMARY KEY,
		request_id BIGINT NOT NULL REFERENCES requests(id),
		module     TEXT NOT NULL,
		payload    JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema runs schemaStatements. Any failure here is a setup-time
// failure and aborts coordinator startup per spec.md §4.1.
func (p *Persistence) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
