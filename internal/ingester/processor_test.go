package ingester

import (
	"testing"
	"time"

	"degenter/internal/events"
	"degenter/internal/models"
)

func TestCollectTradeReqs_OrdinalFallback(t *testing.T) {
	t.Parallel()

	p := &Processor{cfg: ProcessorConfig{}}

	// A node that omits msg_index: two swaps on the same pair contract in
	// one tx must still get distinct insert keys.
	evs := []events.Event{
		{Type: "wasm", Attrs: events.Attrs{"action": "swap", "_contract_address": "zig1pair"}, MsgIndex: -1},
		{Type: "wasm", Attrs: events.Attrs{"action": "swap", "_contract_address": "zig1pair"}, MsgIndex: -1},
		{Type: "wasm", Attrs: events.Attrs{"action": "provide_liquidity", "_contract_address": "zig1pair"}, MsgIndex: -1},
	}

	reqs := p.collectTradeReqs("HASH", evs, nil)
	if len(reqs) != 3 {
		t.Fatalf("expected 3 reqs, got %d", len(reqs))
	}
	seen := make(map[int]bool)
	for _, req := range reqs {
		if seen[req.msgIndex] {
			t.Fatalf("duplicate msgIndex %d", req.msgIndex)
		}
		seen[req.msgIndex] = true
	}
}

func TestCollectTradeReqs_KeepsRealMsgIndex(t *testing.T) {
	t.Parallel()

	p := &Processor{cfg: ProcessorConfig{}}

	evs := []events.Event{
		{Type: "wasm", Attrs: events.Attrs{"action": "swap", "msg_index": "2"}, MsgIndex: 2},
		{Type: "wasm", Attrs: events.Attrs{"action": "swap", "msg_index": "7"}, MsgIndex: 7},
	}

	reqs := p.collectTradeReqs("HASH", evs, map[int]string{2: "zig1a", 7: "zig1b"})
	if reqs[0].msgIndex != 2 || reqs[1].msgIndex != 7 {
		t.Fatalf("msg indexes = %d,%d want 2,7", reqs[0].msgIndex, reqs[1].msgIndex)
	}
	if reqs[0].sender != "zig1a" || reqs[1].sender != "zig1b" {
		t.Fatalf("senders = %q,%q", reqs[0].sender, reqs[1].sender)
	}
	if reqs[0].action != models.ActionSwap {
		t.Fatalf("action = %q", reqs[0].action)
	}
}

func TestCollectTradeReqs_RouterDetection(t *testing.T) {
	t.Parallel()

	p := &Processor{cfg: ProcessorConfig{RouterAddr: "zig1router"}}

	evs := []events.Event{
		{Type: "execute", Attrs: events.Attrs{"_contract_address": "zig1router", "msg_index": "0"}, MsgIndex: 0},
		{Type: "wasm", Attrs: events.Attrs{"action": "swap", "_contract_address": "zig1pair", "msg_index": "0"}, MsgIndex: 0},
	}

	reqs := p.collectTradeReqs("HASH", evs, map[int]string{0: "zig1user"})
	if len(reqs) != 1 || !reqs[0].router {
		t.Fatalf("expected routed swap, got %+v", reqs)
	}
}

func TestMarkBarDeduplicates(t *testing.T) {
	t.Parallel()

	p := NewProcessor(nil, nil, nil, nil, nil, ProcessorConfig{})

	bucket := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		p.markBar(1, bucket)
	}
	p.markBar(2, bucket)
	p.markBar(1, bucket.Add(time.Minute))

	bars := p.takeBars()
	if len(bars) != 3 {
		t.Fatalf("expected 3 distinct bars, got %d", len(bars))
	}
	// The set is consumed: the next height starts clean.
	if left := p.takeBars(); len(left) != 0 {
		t.Fatalf("expected empty set after take, got %d", len(left))
	}
}
