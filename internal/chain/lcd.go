package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// LCDClient talks to the chain's LCD (REST) endpoint for token metadata,
// supply, holder counts and CosmWasm smart queries. Requests are rate
// limited so enrichment bursts cannot starve the node.
type LCDClient struct {
	http    *resty.Client
	limiter *rate.Limiter
}

func NewLCDClient(baseURL string, rps float64) *LCDClient {
	if rps <= 0 {
		rps = 10
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(300 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})
	return &LCDClient{
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
	}
}

func (c *LCDClient) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("lcd %s: %w", path, err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("lcd %s: status %d: %s", path, resp.StatusCode(), resp.String())
	}
	return nil
}

// ErrNotFound is returned when the LCD has no record for the query.
var ErrNotFound = fmt.Errorf("lcd: not found")

// DenomMetadata is the bank module's metadata record for a denom.
type DenomMetadata struct {
	Description string `json:"description"`
	Base        string `json:"base"`
	Display     string `json:"display"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	URI         string `json:"uri"`
	DenomUnits  []struct {
		Denom    string `json:"denom"`
		Exponent int    `json:"exponent"`
	} `json:"denom_units"`
}

// DisplayExponent returns the exponent of the display unit, or 6 if the
// metadata does not carry one.
func (m DenomMetadata) DisplayExponent() int {
	for _, u := range m.DenomUnits {
		if u.Denom == m.Display && u.Exponent > 0 {
			return u.Exponent
		}
	}
	return 6
}

func (c *LCDClient) DenomMetadata(ctx context.Context, denom string) (*DenomMetadata, error) {
	var result struct {
		Metadata DenomMetadata `json:"metadata"`
	}
	err := c.get(ctx, "/cosmos/bank/v1beta1/denoms_metadata/"+denom, nil, &result)
	if err != nil {
		return nil, err
	}
	return &result.Metadata, nil
}

// SupplyOf returns the current on-chain supply of a denom in base units.
func (c *LCDClient) SupplyOf(ctx context.Context, denom string) (string, error) {
	var result struct {
		Amount struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"amount"`
	}
	err := c.get(ctx, "/cosmos/bank/v1beta1/supply/by_denom", map[string]string{"denom": denom}, &result)
	if err != nil {
		return "", err
	}
	return result.Amount.Amount, nil
}

// HolderCount returns the number of accounts holding a denom, using the
// denom_owners pagination total so we never page through the full set.
func (c *LCDClient) HolderCount(ctx context.Context, denom string) (int64, error) {
	var result struct {
		Pagination struct {
			Total string `json:"total"`
		} `json:"pagination"`
	}
	params := map[string]string{
		"pagination.limit":       "1",
		"pagination.count_total": "true",
	}
	err := c.get(ctx, "/cosmos/bank/v1beta1/denom_owners/"+denom, params, &result)
	if err != nil {
		return 0, err
	}
	var total int64
	fmt.Sscanf(result.Pagination.Total, "%d", &total)
	return total, nil
}

// SmartQuery runs a CosmWasm smart query against a contract and decodes
// the "data" field of the response into out.
func (c *LCDClient) SmartQuery(ctx context.Context, contract string, query interface{}, out interface{}) error {
	qb, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("smart query marshal: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(qb)

	var result struct {
		Data json.RawMessage `json:"data"`
	}
	path := "/cosmwasm/wasm/v1/contract/" + contract + "/smart/" + encoded
	if err := c.get(ctx, path, nil, &result); err != nil {
		return err
	}
	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("smart query decode: %w", err)
	}
	return nil
}

// PoolReserves queries a pair contract's {"pool":{}} state and returns the
// two reserve legs as (denom, base amount) pairs.
func (c *LCDClient) PoolReserves(ctx context.Context, pairContract string) ([]ReserveLeg, error) {
	var result struct {
		Assets []struct {
			Info struct {
				NativeToken *struct {
					Denom string `json:"denom"`
				} `json:"native_token"`
				Token *struct {
					ContractAddr string `json:"contract_addr"`
				} `json:"token"`
			} `json:"info"`
			Amount string `json:"amount"`
		} `json:"assets"`
	}
	if err := c.SmartQuery(ctx, pairContract, map[string]interface{}{"pool": map[string]interface{}{}}, &result); err != nil {
		return nil, err
	}

	legs := make([]ReserveLeg, 0, len(result.Assets))
	for _, a := range result.Assets {
		leg := ReserveLeg{Amount: a.Amount}
		switch {
		case a.Info.NativeToken != nil:
			leg.Denom = a.Info.NativeToken.Denom
		case a.Info.Token != nil:
			leg.Denom = a.Info.Token.ContractAddr
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

// ReserveLeg is one side of a pool's reserves in base units.
type ReserveLeg struct {
	Denom  string
	Amount string
}
