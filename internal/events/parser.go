package events

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"degenter/internal/chain"
	"degenter/internal/models"
)

// Event is one structured contract event: its ABCI type and attribute map.
// MsgIndex is the position of the originating message within the tx, -1
// when the node did not attribute it.
type Event struct {
	Type     string
	Attrs    Attrs
	MsgIndex int
}

// Decode flattens the ABCI events of one transaction into Events with
// attribute maps. Duplicate keys keep the first value, which matches how
// the contracts emit them (repeats only appear on nested submessages).
func Decode(raw []chain.ABCIEvent) []Event {
	out := make([]Event, 0, len(raw))
	for _, ev := range raw {
		attrs := make(Attrs, len(ev.Attributes))
		for _, kv := range ev.Attributes {
			if _, exists := attrs[kv.Key]; !exists {
				attrs[kv.Key] = kv.Value
			}
		}
		e := Event{Type: ev.Type, Attrs: attrs, MsgIndex: -1}
		if attrs.Has("msg_index") {
			e.MsgIndex = attrs.Int("msg_index", -1)
		}
		out = append(out, e)
	}
	return out
}

// WasmByAction returns all wasm events whose "action" attribute equals
// action, preserving their original order.
func WasmByAction(evs []Event, action string) []Event {
	var out []Event
	for _, e := range evs {
		if e.Type == "wasm" && e.Attrs.Get("action") == action {
			out = append(out, e)
		}
	}
	return out
}

// MsgSenderMap maps msg_index -> sender from the tx's "message" events,
// for attribution of the on-chain EOA. Events without a msg_index are
// assigned sequentially in order of appearance.
func MsgSenderMap(evs []Event) map[int]string {
	senders := make(map[int]string)
	seq := 0
	for _, e := range evs {
		if e.Type != "message" {
			continue
		}
		sender := e.Attrs.Get("sender")
		if sender == "" {
			continue
		}
		idx := e.MsgIndex
		if idx < 0 {
			idx = seq
			seq++
		}
		if _, exists := senders[idx]; !exists {
			senders[idx] = sender
		}
	}
	return senders
}

// PairLegs is the normalized (base, quote) split of a "pair" attribute.
type PairLegs struct {
	Base  string
	Quote string
}

// NormalizePair splits the pair attribute ("<a>-<b>" or "<a>, <b>") into
// base and quote. If one side is the native quote uzig it is the quote;
// otherwise the lexicographically greater denom is the quote, with the
// right-hand side winning a tie.
func NormalizePair(pair string) (PairLegs, bool) {
	var a, b string
	switch {
	case strings.Contains(pair, ","):
		parts := strings.SplitN(pair, ",", 2)
		a, b = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	case strings.Contains(pair, "-"):
		parts := strings.SplitN(pair, "-", 2)
		a, b = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	default:
		return PairLegs{}, false
	}
	if a == "" || b == "" {
		return PairLegs{}, false
	}

	switch {
	case a == models.UZIGDenom:
		return PairLegs{Base: b, Quote: a}, true
	case b == models.UZIGDenom:
		return PairLegs{Base: a, Quote: b}, true
	case a > b:
		return PairLegs{Base: b, Quote: a}, true
	default:
		return PairLegs{Base: a, Quote: b}, true
	}
}

// AssetAmount is one leg of a reserves or assets attribute.
type AssetAmount struct {
	Denom  string
	Amount string // base units, digits only
}

// ParseReservesKV parses a "denom:amount" comma-separated reserves string,
// e.g. "uzig:1000000, factory/zig1abc/ucoin:250000". Malformed legs are
// dropped; callers recover missing legs from direct attributes.
func ParseReservesKV(s string) []AssetAmount {
	var out []AssetAmount
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i := strings.LastIndex(part, ":")
		if i <= 0 || i == len(part)-1 {
			continue
		}
		denom := strings.TrimSpace(part[:i])
		amount := DigitsOrEmpty(strings.TrimSpace(part[i+1:]))
		if denom == "" || amount == "" {
			continue
		}
		out = append(out, AssetAmount{Denom: denom, Amount: amount})
	}
	return out
}

// ParseAssetsList parses a Cosmos coin list, e.g.
// "1000000uzig, 250000factory/zig1abc/ucoin". The amount is the maximal
// leading digit run; the remainder is the denom.
func ParseAssetsList(s string) []AssetAmount {
	var out []AssetAmount
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		i := 0
		for i < len(part) && part[i] >= '0' && part[i] <= '9' {
			i++
		}
		if i == 0 || i == len(part) {
			continue
		}
		out = append(out, AssetAmount{Denom: part[i:], Amount: part[:i]})
	}
	return out
}

// TxHash reproduces the node's tx hash convention: uppercase hex of the
// SHA-256 of the raw tx bytes.
func TxHash(txBytes []byte) string {
	sum := sha256.Sum256(txBytes)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
