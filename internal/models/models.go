package models

import "time"

// Token type discriminator for the 'tokens' table.
const (
	TokenTypeNative  = "native"
	TokenTypeFactory = "factory"
	TokenTypeIBC     = "ibc"
	TokenTypeCW20    = "cw20"
)

// Pair types recognized on the DEX factory.
const (
	PairTypeXYK          = "xyk"
	PairTypeConcentrated = "concentrated"
	PairTypeCustom       = "custom-concentrated"
)

// Trade actions and directions.
const (
	ActionSwap     = "swap"
	ActionProvide  = "provide"
	ActionWithdraw = "withdraw"

	DirectionBuy      = "buy"
	DirectionSell     = "sell"
	DirectionProvide  = "provide"
	DirectionWithdraw = "withdraw"
)

// Size classes thresholded on native-unit notional.
const (
	SizeShrimp = "shrimp"
	SizeShark  = "shark"
	SizeWhale  = "whale"
)

// Rollup buckets for pool_matrix / token_matrix.
var MatrixBuckets = []string{"30m", "1h", "4h", "24h"}

// UZIGDenom is the chain's native micro-denomination and the canonical
// quote token for pricing.
const UZIGDenom = "uzig"

// Token represents the 'tokens' table. Rows are created on first sighting
// with just the denom; metadata is filled in later by the LCD enricher.
type Token struct {
	ID          int64     `json:"id"`
	Denom       string    `json:"denom"`
	Type        string    `json:"type"`
	Name        string    `json:"name,omitempty"`
	Symbol      string    `json:"symbol,omitempty"`
	Display     string    `json:"display,omitempty"`
	Exponent    int       `json:"exponent"`
	TotalSupply string    `json:"total_supply,omitempty"`
	MaxSupply   string    `json:"max_supply,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Website     string    `json:"website,omitempty"`
	Twitter     string    `json:"twitter,omitempty"`
	Telegram    string    `json:"telegram,omitempty"`
	HolderCount int64     `json:"holder_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Pool represents the 'pools' table, unique by pair_contract.
type Pool struct {
	ID              int64     `json:"id"`
	PairContract    string    `json:"pair_contract"`
	DexID           int64     `json:"dex_id"`
	ChainID         string    `json:"chain_id"`
	BaseTokenID     int64     `json:"base_token_id"`
	QuoteTokenID    int64     `json:"quote_token_id"`
	BaseDenom       string    `json:"base_denom"`
	QuoteDenom      string    `json:"quote_denom"`
	PairType        string    `json:"pair_type"`
	IsUzigQuote     bool      `json:"is_uzig_quote"`
	Creator         string    `json:"creator,omitempty"`
	TxHash          string    `json:"tx_hash,omitempty"`
	FactoryContract string    `json:"factory_contract,omitempty"`
	BlockHeight     int64     `json:"block_height"`
	CreatedAt       time.Time `json:"created_at"`
}

// PoolWithTokens is the resolved triple used by phase-2 processing.
type PoolWithTokens struct {
	Pool  Pool
	Base  Token
	Quote Token
}

// Trade represents the append-only 'trades' table. Natural key is
// (created_at, tx_hash, pool_id, msg_index). Amounts stay decimal strings
// end-to-end; conversion to display units happens only in shapers.
type Trade struct {
	ID               int64     `json:"id"`
	PoolID           int64     `json:"pool_id"`
	TxHash           string    `json:"tx_hash"`
	MsgIndex         int       `json:"msg_index"`
	Action           string    `json:"action"`
	Direction        string    `json:"direction"`
	OfferDenom       string    `json:"offer_denom,omitempty"`
	OfferAmountBase  string    `json:"offer_amount_base,omitempty"`
	AskDenom         string    `json:"ask_denom,omitempty"`
	AskAmountBase    string    `json:"ask_amount_base,omitempty"`
	ReturnAmountBase string    `json:"return_amount_base,omitempty"`
	Reserve1Denom    string    `json:"reserve1_denom,omitempty"`
	Reserve1Amount   string    `json:"reserve1_amount,omitempty"`
	Reserve2Denom    string    `json:"reserve2_denom,omitempty"`
	Reserve2Amount   string    `json:"reserve2_amount,omitempty"`
	Signer           string    `json:"signer,omitempty"`
	IsRouter         bool      `json:"is_router"`
	SizeClass        string    `json:"size_class,omitempty"` // shrimp|shark|whale or ""
	BlockHeight      int64     `json:"block_height"`
	CreatedAt        time.Time `json:"created_at"`
}

// PoolState is the last observed reserves snapshot, one row per pool.
type PoolState struct {
	PoolID      int64     `json:"pool_id"`
	BaseAmount  string    `json:"base_amount"`
	QuoteAmount string    `json:"quote_amount"`
	BlockHeight int64     `json:"block_height"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Price is the live price row, unique on (token_id, pool_id).
type Price struct {
	TokenID      int64     `json:"token_id"`
	PoolID       int64     `json:"pool_id"`
	PriceInZig   string    `json:"price_in_zig"` // numeric(38,18) as string
	IsPairNative bool      `json:"is_pair_native"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PriceTick is an append-only price observation.
type PriceTick struct {
	TokenID    int64     `json:"token_id"`
	PoolID     int64     `json:"pool_id"`
	PriceInZig string    `json:"price_in_zig"`
	CreatedAt  time.Time `json:"created_at"`
}

// Candle represents the 'ohlcv_1m' table, unique on (pool_id, bucket_start).
type Candle struct {
	PoolID      int64     `json:"pool_id"`
	BucketStart time.Time `json:"bucket_start"`
	Open        string    `json:"open"`
	High        string    `json:"high"`
	Low         string    `json:"low"`
	Close       string    `json:"close"`
	VolumeZig   string    `json:"volume_zig"`
	TradeCount  int64     `json:"trade_count"`
}

// PoolMatrixRow is a rolling-window aggregate, unique on (pool_id, bucket).
type PoolMatrixRow struct {
	PoolID        int64     `json:"pool_id"`
	Bucket        string    `json:"bucket"`
	VolumeZig     string    `json:"volume_zig"`
	TradeCount    int64     `json:"trade_count"`
	UniqueSigners int64     `json:"unique_signers"`
	PriceChange   string    `json:"price_change,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TokenMatrixRow mirrors PoolMatrixRow aggregated across all pools of a token.
type TokenMatrixRow struct {
	TokenID       int64     `json:"token_id"`
	Bucket        string    `json:"bucket"`
	VolumeZig     string    `json:"volume_zig"`
	TradeCount    int64     `json:"trade_count"`
	UniqueSigners int64     `json:"unique_signers"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SecurityFlags holds heuristic token security signals.
type SecurityFlags struct {
	TokenID     int64     `json:"token_id"`
	HasMintAuth bool      `json:"has_mint_auth"`
	NoMetadata  bool      `json:"no_metadata"`
	FewHolders  bool      `json:"few_holders"`
	ScannedAt   time.Time `json:"scanned_at"`
}

// IndexingCheckpoint represents 'index_state', the resumable high-water mark.
type IndexingCheckpoint struct {
	ServiceName string    `json:"service_name"`
	LastHeight  int64     `json:"last_height"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PairCreated is the payload published on the 'pair_created' bus topic.
type PairCreated struct {
	PoolID       int64  `json:"pool_id"`
	PairContract string `json:"pair_contract"`
	BaseDenom    string `json:"base_denom"`
	QuoteDenom   string `json:"quote_denom"`
	BaseTokenID  int64  `json:"base_token_id"`
	QuoteTokenID int64  `json:"quote_token_id"`
	IsUzigQuote  bool   `json:"is_uzig_quote"`
}
