package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dx-community/modmail/internal/domain"
)

// MacroRepository is the key-value store for premade staff replies.
type MacroRepository interface {
	Get(ctx context.Context, key string) (*domain.MacroResponse, error)
	Add(ctx context.Context, macro domain.MacroResponse) error
	Remove(ctx context.Context, key string) (bool, error)
	ListKeys(ctx context.Context) ([]string, error)
}

// ErrMacroExists is returned when adding a key that is already present.
var ErrMacroExists = errors.New("macro key already exists")

type macroRepository struct {
	pool *pgxpool.Pool
}

// NewMacroRepository instantiates the repository.
func NewMacroRepository(pool *pgxpool.Pool) MacroRepository {
	return &macroRepository{pool: pool}
}

func (r *macroRepository) Get(ctx context.Context, key string) (*domain.MacroResponse, error) {
	const query = `SELECT key, response FROM dx_responses WHERE key=$1`
	var macro domain.MacroResponse
	if err := r.pool.QueryRow(ctx, query, key).Scan(&macro.Key, &macro.Response); err != nil {
		return nil, err
	}
	return &macro, nil
}

func (r *macroRepository) Add(ctx context.Context, macro domain.MacroResponse) error {
	const query = `
        INSERT INTO dx_responses (key, response) VALUES ($1,$2)
        ON CONFLICT (key) DO NOTHING`
	cmd, err := r.pool.Exec(ctx, query, macro.Key, macro.Response)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrMacroExists
	}
	return nil
}

func (r *macroRepository) Remove(ctx context.Context, key string) (bool, error) {
	const query = `DELETE FROM dx_responses WHERE key=$1`
	cmd, err := r.pool.Exec(ctx, query, key)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *macroRepository) ListKeys(ctx context.Context) ([]string, error) {
	const query = `SELECT key FROM dx_responses ORDER BY key`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// IsNoRows reports whether err means "no matching row".
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
