package postgres

import (
	"context"
	"errors"

	"github.com/akowasch/domainsearch/internal/domain"
	"github.com/akowasch/domainsearch/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Persistence implements repository.Persistence on top of a single
// pgxpool.Pool. Every method serializes through the pool's own
// connection management; the design does not require multi-statement
// transactions (spec.md §4.1).
type Persistence struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Persistence {
	return &Persistence{pool: pool}
}

func (p *Persistence) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Persistence) Close() { p.pool.Close() }

func (p *Persistence) InsertDomain(ctx context.Context, name string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO domains (name) VALUES ($1) RETURNING id`, name,
	).Scan(&id)
	if err != nil {
		return 0, &repository.PersistenceError{Op: "insert_domain", Err: err}
	}
	return id, nil
}

func (p *Persistence) UpdateDomain(ctx context.Context, name string, state domain.Access, comment string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE domains SET state = $2, comment = $3, updated_at = now() WHERE name = $1`,
		name, state, comment)
	if err != nil {
		return &repository.PersistenceError{Op: "update_domain", Err: err}
	}
	return nil
}

func (p *Persistence) FindDomain(ctx context.Context, name string) (*repository.FoundDomain, error) {
	var d repository.FoundDomain
	err := p.pool.QueryRow(ctx,
		`SELECT id, state, comment, updated_at FROM domains WHERE name = $1`, name,
	).Scan(&d.ID, &d.State, &d.Comment, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &repository.PersistenceError{Op: "find_domain", Err: err}
	}
	return &d, nil
}

func (p *Persistence) InsertRequest(ctx context.Context, domainID int64) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO requests (domain_id) VALUES ($1) RETURNING id`, domainID,
	).Scan(&id)
	if err != nil {
		return 0, &repository.PersistenceError{Op: "insert_request", Err: err}
	}
	return id, nil
}

func (p *Persistence) LatestRequestFor(ctx context.Context, domainID int64) (*repository.LatestRequest, error) {
	var r repository.LatestRequest
	err := p.pool.QueryRow(ctx,
		`SELECT state, created_at FROM requests WHERE domain_id = $1 ORDER BY id DESC LIMIT 1`,
		domainID,
	).Scan(&r.State, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &repository.PersistenceError{Op: "latest_request_for", Err: err}
	}
	return &r, nil
}

func (p *Persistence) UpdateRequest(ctx context.Context, id int64, state domain.RequestState, comment string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE requests SET state = $2, comment = $3 WHERE id = $1`, id, state, comment)
	if err != nil {
		return &repository.PersistenceError{Op: "update_request", Err: err}
	}
	return nil
}

func (p *Persistence) IsRequestValid(ctx context.Context, requestID int64, domainName string) (bool, error) {
	var ok bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM requests r
			JOIN domains d ON d.id = r.domain_id
			WHERE r.id = $1 AND d.name = $2
		)`, requestID, domainName,
	).Scan(&ok)
	if err != nil {
		return false, &repository.PersistenceError{Op: "is_request_valid", Err: err}
	}
	return ok, nil
}

func (p *Persistence) InsertModuleRecord(ctx context.Context, requestID int64, module string, payload []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO module_records (request_id, module, payload) VALUES ($1, $2, $3)`,
		requestID, module, payload)
	if err != nil {
		return &repository.PersistenceError{Op: "insert_module_record", Err: err}
	}
	return nil
}

func (p *Persistence) GetModuleVersion(ctx context.Context, module string) (int, bool, error) {
	var v int
	err := p.pool.QueryRow(ctx,
		`SELECT version FROM versions WHERE module = $1`, module,
	).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, &repository.PersistenceError{Op: "get_module_version", Err: err}
	}
	return v, true, nil
}

func (p *Persistence) SetModuleVersion(ctx context.Context, module string, version int) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO versions (module, version) VALUES ($1, $2)
		ON CONFLICT (module) DO UPDATE SET version = $2, updated_at = now()`,
		module, version)
	if err != nil {
		return &repository.PersistenceError{Op: "set_module_version", Err: err}
	}
	return nil
}

func (p *Persistence) Exec(ctx context.Context, statement string) error {
	_, err := p.pool.Exec(ctx, statement)
	if err != nil {
		return &repository.PersistenceError{Op: "exec", Err: err}
	}
	return nil
}

func (p *Persistence) InsertError(ctx context.Context, requestID int64, module, comment string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO errors (request_id, module, comment) VALUES ($1, $2, $3)`,
		requestID, module, comment)
	if err != nil {
		return &repository.PersistenceError{Op: "insert_error", Err: err}
	}
	return nil
}
