package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"degenter/internal/models"
)

// UnknownDEXName is auto-inserted into dex_catalogue when a pool arrives
// from a factory contract we have never seen, so foreign keys stay valid.
const UnknownDEXName = "UnknownDEX"

// resolveDex maps a factory contract to (dex_id, chain_id), inserting an
// UnknownDEX row on first contact with an unrecognized factory.
func (r *Repository) resolveDex(ctx context.Context, factoryContract string) (int64, string, error) {
	var dexID int64
	var chainID string
	err := r.db.QueryRow(ctx,
		"SELECT id, chain_id FROM dex_catalogue WHERE factory_contract = $1",
		factoryContract,
	).Scan(&dexID, &chainID)
	if err == nil {
		return dexID, chainID, nil
	}
	if err != pgx.ErrNoRows {
		return 0, "", err
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO dex_catalogue (name, factory_contract, chain_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (factory_contract) DO UPDATE SET name = dex_catalogue.name
		RETURNING id, chain_id`,
		UnknownDEXName, factoryContract, "zigchain-1", time.Now(),
	).Scan(&dexID, &chainID)
	if err != nil {
		return 0, "", fmt.Errorf("failed to auto-insert dex for factory %s: %w", factoryContract, err)
	}
	return dexID, chainID, nil
}

// UpsertPool atomically inserts or updates a pool keyed by pair_contract
// and returns its id. Token rows for both denoms are created on the fly.
func (r *Repository) UpsertPool(ctx context.Context, p models.Pool) (int64, error) {
	dexID, chainID, err := r.resolveDex(ctx, p.FactoryContract)
	if err != nil {
		return 0, err
	}

	baseID, err := r.UpsertTokenMinimal(ctx, p.BaseDenom)
	if err != nil {
		return 0, err
	}
	quoteID, err := r.UpsertTokenMinimal(ctx, p.QuoteDenom)
	if err != nil {
		return 0, err
	}

	isUzigQuote := p.QuoteDenom == models.UZIGDenom

	var id int64
	err = r.db.QueryRow(ctx, `
		INSERT INTO pools (pair_contract, dex_id, chain_id, base_token_id, quote_token_id,
		                   base_denom, quote_denom, pair_type, is_uzig_quote,
		                   creator, tx_hash, factory_contract, block_height, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (pair_contract) DO UPDATE SET
			pair_type = EXCLUDED.pair_type,
			is_uzig_quote = EXCLUDED.is_uzig_quote
		RETURNING id`,
		p.PairContract, dexID, chainID, baseID, quoteID,
		p.BaseDenom, p.QuoteDenom, p.PairType, isUzigQuote,
		p.Creator, p.TxHash, p.FactoryContract, p.BlockHeight, p.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert pool %s: %w", p.PairContract, err)
	}
	return id, nil
}

const poolWithTokensQuery = `
	SELECT p.id, p.pair_contract, p.dex_id, p.chain_id, p.base_token_id, p.quote_token_id,
	       p.base_denom, p.quote_denom, p.pair_type, p.is_uzig_quote,
	       COALESCE(p.creator,''), COALESCE(p.tx_hash,''), COALESCE(p.factory_contract,''),
	       p.block_height, p.created_at,
	       bt.id, bt.denom, bt.type, COALESCE(bt.symbol,''), bt.exponent,
	       qt.id, qt.denom, qt.type, COALESCE(qt.symbol,''), qt.exponent
	FROM pools p
	JOIN tokens bt ON bt.id = p.base_token_id
	JOIN tokens qt ON qt.id = p.quote_token_id`

func scanPoolWithTokens(row pgx.Row) (*models.PoolWithTokens, error) {
	var pwt models.PoolWithTokens
	err := row.Scan(
		&pwt.Pool.ID, &pwt.Pool.PairContract, &pwt.Pool.DexID, &pwt.Pool.ChainID,
		&pwt.Pool.BaseTokenID, &pwt.Pool.QuoteTokenID,
		&pwt.Pool.BaseDenom, &pwt.Pool.QuoteDenom, &pwt.Pool.PairType, &pwt.Pool.IsUzigQuote,
		&pwt.Pool.Creator, &pwt.Pool.TxHash, &pwt.Pool.FactoryContract,
		&pwt.Pool.BlockHeight, &pwt.Pool.CreatedAt,
		&pwt.Base.ID, &pwt.Base.Denom, &pwt.Base.Type, &pwt.Base.Symbol, &pwt.Base.Exponent,
		&pwt.Quote.ID, &pwt.Quote.Denom, &pwt.Quote.Type, &pwt.Quote.Symbol, &pwt.Quote.Exponent,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pwt, nil
}

// PoolWithTokens resolves a pair contract to the full pool + token triple,
// or nil when the pool is unknown.
func (r *Repository) PoolWithTokens(ctx context.Context, pairContract string) (*models.PoolWithTokens, error) {
	row := r.db.QueryRow(ctx, poolWithTokensQuery+" WHERE p.pair_contract = $1", pairContract)
	return scanPoolWithTokens(row)
}

// PoolWithTokensByID is PoolWithTokens keyed by pool id.
func (r *Repository) PoolWithTokensByID(ctx context.Context, poolID int64) (*models.PoolWithTokens, error) {
	row := r.db.QueryRow(ctx, poolWithTokensQuery+" WHERE p.id = $1", poolID)
	return scanPoolWithTokens(row)
}

// PoolsByPairContracts prefetches a set of pools in one query, for the
// phase-2 pool cache.
func (r *Repository) PoolsByPairContracts(ctx context.Context, pairContracts []string) (map[string]*models.PoolWithTokens, error) {
	out := make(map[string]*models.PoolWithTokens, len(pairContracts))
	if len(pairContracts) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, poolWithTokensQuery+" WHERE p.pair_contract = ANY($1)", pairContracts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		pwt, err := scanPoolWithTokens(rows)
		if err != nil {
			return nil, err
		}
		out[pwt.Pool.PairContract] = pwt
	}
	return out, rows.Err()
}

// PoolsByTokenID lists pools whose base token matches, for token rollups.
func (r *Repository) PoolsByTokenID(ctx context.Context, tokenID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, "SELECT id FROM pools WHERE base_token_id = $1", tokenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
