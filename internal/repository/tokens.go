package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"degenter/internal/models"
)

// UpsertTokenMinimal inserts a token row for a denom on first sighting and
// returns its id. Idempotent; concurrent callers converge on the same row.
// New rows default to type 'factory' with exponent 6 until the LCD enricher
// fills in the metadata.
func (r *Repository) UpsertTokenMinimal(ctx context.Context, denom string) (int64, error) {
	tokenType := classifyDenom(denom)
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO tokens (denom, type, exponent, created_at, updated_at)
		VALUES ($1, $2, 6, $3, $3)
		ON CONFLICT (denom) DO UPDATE SET denom = EXCLUDED.denom
		RETURNING id`,
		denom, tokenType, time.Now(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert token %s: %w", denom, err)
	}
	return id, nil
}

func classifyDenom(denom string) string {
	switch {
	case denom == models.UZIGDenom:
		return models.TokenTypeNative
	case len(denom) > 4 && denom[:4] == "ibc/":
		return models.TokenTypeIBC
	case len(denom) > 8 && denom[:8] == "factory/":
		return models.TokenTypeFactory
	case len(denom) > 4 && denom[:4] == "zig1":
		return models.TokenTypeCW20
	default:
		return models.TokenTypeFactory
	}
}

// SetTokenMeta fills in the metadata columns fetched from the LCD. It never
// creates a row; race-tolerant because the row key is stable and the update
// is a single statement.
func (r *Repository) SetTokenMeta(ctx context.Context, denom, name, symbol, display string, exponent int, totalSupply string) error {
	if exponent < 0 || exponent > 30 {
		return fmt.Errorf("token %s: exponent %d out of range [0,30]", denom, exponent)
	}
	_, err := r.db.Exec(ctx, `
		UPDATE tokens
		SET name = $2, symbol = $3, display = $4, exponent = $5,
		    total_supply = NULLIF($6, ''), updated_at = $7
		WHERE denom = $1`,
		denom, name, symbol, display, exponent, totalSupply, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to set token meta %s: %w", denom, err)
	}
	return nil
}

// SetTokenHolderCount overwrites the holder count for a token.
func (r *Repository) SetTokenHolderCount(ctx context.Context, tokenID, count int64) error {
	_, err := r.db.Exec(ctx,
		"UPDATE tokens SET holder_count = $2, updated_at = $3 WHERE id = $1",
		tokenID, count, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to set holder count for token %d: %w", tokenID, err)
	}
	return nil
}

// GetTokenByDenom returns the token row, or nil when unknown.
func (r *Repository) GetTokenByDenom(ctx context.Context, denom string) (*models.Token, error) {
	var t models.Token
	err := r.db.QueryRow(ctx, `
		SELECT id, denom, type, COALESCE(name,''), COALESCE(symbol,''), COALESCE(display,''),
		       exponent, COALESCE(total_supply,''), holder_count, created_at, updated_at
		FROM tokens WHERE denom = $1`, denom).
		Scan(&t.ID, &t.Denom, &t.Type, &t.Name, &t.Symbol, &t.Display,
			&t.Exponent, &t.TotalSupply, &t.HolderCount, &t.CreatedAt, &t.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTokenByID returns the token row by id, or nil when unknown.
func (r *Repository) GetTokenByID(ctx context.Context, id int64) (*models.Token, error) {
	var t models.Token
	err := r.db.QueryRow(ctx, `
		SELECT id, denom, type, COALESCE(name,''), COALESCE(symbol,''), COALESCE(display,''),
		       exponent, COALESCE(total_supply,''), holder_count, created_at, updated_at
		FROM tokens WHERE id = $1`, id).
		Scan(&t.ID, &t.Denom, &t.Type, &t.Name, &t.Symbol, &t.Display,
			&t.Exponent, &t.TotalSupply, &t.HolderCount, &t.CreatedAt, &t.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TokensMissingMeta lists denoms whose metadata has never been filled,
// oldest first, for the backfill worker.
func (r *Repository) TokensMissingMeta(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT denom FROM tokens
		WHERE symbol IS NULL AND type <> 'native'
		ORDER BY id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var denoms []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		denoms = append(denoms, d)
	}
	return denoms, rows.Err()
}

// UpsertSecurityFlags records heuristic security signals for a token.
func (r *Repository) UpsertSecurityFlags(ctx context.Context, f models.SecurityFlags) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO token_security (token_id, has_mint_auth, no_metadata, few_holders, scanned_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_id) DO UPDATE SET
			has_mint_auth = EXCLUDED.has_mint_auth,
			no_metadata = EXCLUDED.no_metadata,
			few_holders = EXCLUDED.few_holders,
			scanned_at = EXCLUDED.scanned_at`,
		f.TokenID, f.HasMintAuth, f.NoMetadata, f.FewHolders, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert security flags for token %d: %w", f.TokenID, err)
	}
	return nil
}
