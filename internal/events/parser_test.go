package events

import (
	"testing"

	"degenter/internal/chain"
)

func TestNormalizePair(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in        string
		wantBase  string
		wantQuote string
		ok        bool
	}{
		// uzig is always the quote, regardless of side.
		{"uzig-factory/zig1abc/ucoin", "factory/zig1abc/ucoin", "uzig", true},
		{"factory/zig1abc/ucoin-uzig", "factory/zig1abc/ucoin", "uzig", true},
		// comma-separated form
		{"uzig, factory/zig1abc/ucoin", "factory/zig1abc/ucoin", "uzig", true},
		// non-native pair: lexicographically greater denom is the quote
		{"factory/zig1abc/ua-factory/zig1abc/ub", "factory/zig1abc/ua", "factory/zig1abc/ub", true},
		{"factory/zig1abc/ub-factory/zig1abc/ua", "factory/zig1abc/ua", "factory/zig1abc/ub", true},
		// equal denoms: right-hand side wins the tie, so left is base
		{"ucoin-ucoin", "ucoin", "ucoin", true},
		// malformed
		{"uzig", "", "", false},
		{"-ucoin", "", "", false},
		{"uzig-", "", "", false},
		{"", "", "", false},
	}

	for _, tc := range cases {
		legs, ok := NormalizePair(tc.in)
		if ok != tc.ok {
			t.Fatalf("NormalizePair(%q) ok=%v want %v", tc.in, ok, tc.ok)
		}
		if legs.Base != tc.wantBase || legs.Quote != tc.wantQuote {
			t.Fatalf("NormalizePair(%q)=(%q,%q) want (%q,%q)", tc.in, legs.Base, legs.Quote, tc.wantBase, tc.wantQuote)
		}
	}
}

func TestParseReservesKV(t *testing.T) {
	t.Parallel()

	got := ParseReservesKV("uzig:1000000, factory/zig1abc/ucoin:250000")
	if len(got) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(got))
	}
	if got[0].Denom != "uzig" || got[0].Amount != "1000000" {
		t.Errorf("leg 0 = %+v", got[0])
	}
	// The denom itself contains colons; the amount is after the last one.
	if got[1].Denom != "factory/zig1abc/ucoin" || got[1].Amount != "250000" {
		t.Errorf("leg 1 = %+v", got[1])
	}

	ibc := ParseReservesKV("ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2:42")
	if len(ibc) != 1 || ibc[0].Denom != "ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2" || ibc[0].Amount != "42" {
		t.Errorf("ibc leg = %+v", ibc)
	}

	// Malformed legs are dropped, valid ones kept.
	partial := ParseReservesKV("uzig:100, garbage, :5, ucoin:")
	if len(partial) != 1 || partial[0].Denom != "uzig" {
		t.Errorf("partial = %+v", partial)
	}

	if got := ParseReservesKV(""); len(got) != 0 {
		t.Errorf("empty input produced %+v", got)
	}
}

func TestParseAssetsList(t *testing.T) {
	t.Parallel()

	got := ParseAssetsList("1000000uzig, 250000factory/zig1abc/ucoin")
	if len(got) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(got))
	}
	if got[0].Denom != "uzig" || got[0].Amount != "1000000" {
		t.Errorf("leg 0 = %+v", got[0])
	}
	if got[1].Denom != "factory/zig1abc/ucoin" || got[1].Amount != "250000" {
		t.Errorf("leg 1 = %+v", got[1])
	}

	// No leading digits or digits only: dropped.
	bad := ParseAssetsList("uzig, 12345")
	if len(bad) != 0 {
		t.Errorf("expected no legs, got %+v", bad)
	}
}

func TestDigitsOrEmpty(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"123456", "123456"},
		{"0", "0"},
		// amounts beyond uint64 stay intact
		{"340282366920938463463374607431768211456", "340282366920938463463374607431768211456"},
		{"12a3", ""},
		{"-5", ""},
		{"1.5", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := DigitsOrEmpty(tc.in); got != tc.want {
			t.Fatalf("DigitsOrEmpty(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestDecode_DuplicateKeysKeepFirst(t *testing.T) {
	t.Parallel()

	raw := []chain.ABCIEvent{
		{
			Type: "wasm",
			Attributes: []chain.EventAttr{
				{Key: "action", Value: "swap"},
				{Key: "offer_asset", Value: "uzig"},
				{Key: "offer_asset", Value: "ucoin"}, // nested submessage repeat
				{Key: "msg_index", Value: "2"},
			},
		},
		{
			Type:       "message",
			Attributes: []chain.EventAttr{{Key: "sender", Value: "zig1signer"}},
		},
	}

	evs := Decode(raw)
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].Attrs.Get("offer_asset") != "uzig" {
		t.Errorf("duplicate key should keep first value, got %q", evs[0].Attrs.Get("offer_asset"))
	}
	if evs[0].MsgIndex != 2 {
		t.Errorf("msg_index = %d, want 2", evs[0].MsgIndex)
	}
	if evs[1].MsgIndex != -1 {
		t.Errorf("missing msg_index should be -1, got %d", evs[1].MsgIndex)
	}
}

func TestWasmByAction(t *testing.T) {
	t.Parallel()

	evs := []Event{
		{Type: "wasm", Attrs: Attrs{"action": "swap", "pair": "a"}},
		{Type: "wasm", Attrs: Attrs{"action": "provide_liquidity"}},
		{Type: "transfer", Attrs: Attrs{"action": "swap"}},
		{Type: "wasm", Attrs: Attrs{"action": "swap", "pair": "b"}},
	}

	swaps := WasmByAction(evs, "swap")
	if len(swaps) != 2 {
		t.Fatalf("expected 2 swaps, got %d", len(swaps))
	}
	if swaps[0].Attrs.Get("pair") != "a" || swaps[1].Attrs.Get("pair") != "b" {
		t.Errorf("order not preserved: %+v", swaps)
	}
}

func TestMsgSenderMap(t *testing.T) {
	t.Parallel()

	evs := []Event{
		{Type: "message", Attrs: Attrs{"sender": "zig1first", "msg_index": "0"}, MsgIndex: 0},
		{Type: "message", Attrs: Attrs{"sender": "zig1second", "msg_index": "1"}, MsgIndex: 1},
		{Type: "wasm", Attrs: Attrs{"action": "swap"}, MsgIndex: 0},
	}
	senders := MsgSenderMap(evs)
	if senders[0] != "zig1first" || senders[1] != "zig1second" {
		t.Errorf("senders = %v", senders)
	}

	// Old node versions omit msg_index; fall back to sequential order.
	legacy := []Event{
		{Type: "message", Attrs: Attrs{"sender": "zig1a"}, MsgIndex: -1},
		{Type: "message", Attrs: Attrs{"sender": "zig1b"}, MsgIndex: -1},
	}
	senders = MsgSenderMap(legacy)
	if senders[0] != "zig1a" || senders[1] != "zig1b" {
		t.Errorf("sequential fallback senders = %v", senders)
	}

	// Indexed events must not advance the fallback counter: the unindexed
	// events here are the tx's first and second messages regardless of the
	// indexed event sitting between them.
	mixed := []Event{
		{Type: "message", Attrs: Attrs{"sender": "zig1a"}, MsgIndex: -1},
		{Type: "message", Attrs: Attrs{"sender": "zig1five", "msg_index": "5"}, MsgIndex: 5},
		{Type: "message", Attrs: Attrs{"sender": "zig1b"}, MsgIndex: -1},
	}
	senders = MsgSenderMap(mixed)
	if senders[0] != "zig1a" || senders[1] != "zig1b" || senders[5] != "zig1five" {
		t.Errorf("mixed senders = %v", senders)
	}
}

func TestTxHash(t *testing.T) {
	t.Parallel()

	// sha256("") uppercased
	want := "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855"
	if got := TxHash(nil); got != want {
		t.Fatalf("TxHash(nil)=%s want %s", got, want)
	}
	if got := TxHash([]byte("tx")); len(got) != 64 {
		t.Fatalf("hash length = %d, want 64", len(got))
	}
}
