// Package chain holds the HTTP clients for the node's CometBFT JSON-RPC
// endpoint and the chain LCD (REST) endpoint.
package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ABCIEvent is one event emitted by a transaction, as returned by
// /block_results. Attribute keys/values are plain strings on modern nodes;
// older nodes base64-encode them, handled by the opt-in legacy decode.
type ABCIEvent struct {
	Type       string      `json:"type"`
	Attributes []EventAttr `json:"attributes"`
}

type EventAttr struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Block is the subset of /block we care about.
type Block struct {
	Height int64
	Time   time.Time
	Txs    [][]byte // raw tx bytes, base64-decoded
}

// BlockResults is the subset of /block_results we care about.
type BlockResults struct {
	Height     int64
	TxsResults []TxResult
}

type TxResult struct {
	Code   uint32      `json:"code"`
	Events []ABCIEvent `json:"events"`
}

// RPCClient talks to the node's CometBFT JSON-RPC over HTTP.
type RPCClient struct {
	http *resty.Client
	// legacyAttrs enables base64 attribute decoding for pre-v0.34.20
	// nodes. Opt-in (RPC_LEGACY_ATTR_DECODE=true) because the decode is a
	// heuristic that could mangle modern plain-string values.
	legacyAttrs bool
}

func NewRPCClient(baseURL string) *RPCClient {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})
	return &RPCClient{
		http:        httpClient,
		legacyAttrs: strings.EqualFold(os.Getenv("RPC_LEGACY_ATTR_DECODE"), "true"),
	}
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    string `json:"data"`
	} `json:"error"`
}

func (c *RPCClient) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	var env rpcEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&env).
		Get(path)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("rpc %s: status %d: %s", path, resp.StatusCode(), resp.String())
	}
	if env.Error != nil {
		return fmt.Errorf("rpc %s: %s (%s)", path, env.Error.Message, env.Error.Data)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("rpc %s: decode result: %w", path, err)
	}
	return nil
}

// LatestHeight returns the node's current tip height from /status.
func (c *RPCClient) LatestHeight(ctx context.Context) (int64, error) {
	var result struct {
		SyncInfo struct {
			LatestBlockHeight string `json:"latest_block_height"`
		} `json:"sync_info"`
	}
	if err := c.get(ctx, "/status", nil, &result); err != nil {
		return 0, err
	}
	h, err := strconv.ParseInt(result.SyncInfo.LatestBlockHeight, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse latest height %q: %w", result.SyncInfo.LatestBlockHeight, err)
	}
	return h, nil
}

// Block fetches /block?height=h and decodes the raw transactions.
func (c *RPCClient) Block(ctx context.Context, height int64) (*Block, error) {
	var result struct {
		Block struct {
			Header struct {
				Height string    `json:"height"`
				Time   time.Time `json:"time"`
			} `json:"header"`
			Data struct {
				Txs []string `json:"txs"`
			} `json:"data"`
		} `json:"block"`
	}
	if err := c.get(ctx, "/block", map[string]string{"height": strconv.FormatInt(height, 10)}, &result); err != nil {
		return nil, err
	}

	h, _ := strconv.ParseInt(result.Block.Header.Height, 10, 64)
	block := &Block{
		Height: h,
		Time:   result.Block.Header.Time,
		Txs:    make([][]byte, 0, len(result.Block.Data.Txs)),
	}
	for i, b64 := range result.Block.Data.Txs {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("block %d: decode tx %d: %w", height, i, err)
		}
		block.Txs = append(block.Txs, raw)
	}
	return block, nil
}

// BlockResults fetches /block_results?height=h.
func (c *RPCClient) BlockResults(ctx context.Context, height int64) (*BlockResults, error) {
	var result struct {
		Height     string     `json:"height"`
		TxsResults []TxResult `json:"txs_results"`
	}
	if err := c.get(ctx, "/block_results", map[string]string{"height": strconv.FormatInt(height, 10)}, &result); err != nil {
		return nil, err
	}

	h, _ := strconv.ParseInt(result.Height, 10, 64)
	br := &BlockResults{Height: h, TxsResults: result.TxsResults}
	if c.legacyAttrs {
		for ti := range br.TxsResults {
			for ei := range br.TxsResults[ti].Events {
				attrs := br.TxsResults[ti].Events[ei].Attributes
				for ai := range attrs {
					attrs[ai].Key = decodeAttr(attrs[ai].Key)
					attrs[ai].Value = decodeAttr(attrs[ai].Value)
				}
			}
		}
	}
	return br, nil
}

// decodeAttr handles pre-v0.34.20 nodes that base64-encode event attribute
// keys and values. Only called when legacy decoding is enabled; strings
// that do not round-trip as base64, or decode to non-printable bytes, pass
// through untouched.
func decodeAttr(s string) string {
	if s == "" {
		return s
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	// Base64 decoding is lossy for plain ASCII inputs ("swap" decodes too),
	// so only accept the decoded form when re-encoding round-trips and the
	// result is printable.
	if base64.StdEncoding.EncodeToString(raw) != s {
		return s
	}
	for _, b := range raw {
		if b < 0x20 || b > 0x7e {
			return s
		}
	}
	return string(raw)
}
