package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"simpleamm/internal/engine"
	"simpleamm/internal/ledger"
	"simpleamm/internal/registry"
)

const (
	authorityHex = "0x000000000000000000000000000000000000a0a0"
	aliceHex     = "0x000000000000000000000000000000000000a11c"
	bobHex       = "0x0000000000000000000000000000000000000b0b"
	tokenAHex    = "0x00000000000000000000000000000000000000aa"
	tokenBHex    = "0x00000000000000000000000000000000000000bb"
)

type collector struct {
	records []interface{}
}

func (c *collector) Write(v interface{}) error {
	c.records = append(c.records, v)
	return nil
}

func newDispatcher(t *testing.T, auth engine.Authorizer) (*Dispatcher, *ledger.Memory) {
	t.Helper()
	cfg, err := engine.Initialize(common.HexToAddress(authorityHex), 30)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	reg, err := registry.New(cfg.FeeBasisPoints)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	mem := ledger.NewMemory()
	e, err := engine.New(cfg, mem, reg)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return NewDispatcher(e, mem, auth, nil), mem
}

const script = `
{"op":"mint","caller":"` + authorityHex + `","asset":"` + tokenAHex + `","to":"` + aliceHex + `","amount":5000}
{"op":"mint","caller":"` + authorityHex + `","asset":"` + tokenBHex + `","to":"` + aliceHex + `","amount":5000}
{"op":"mint","caller":"` + authorityHex + `","asset":"` + tokenAHex + `","to":"` + bobHex + `","amount":500}
{"id":"seed","op":"add_liquidity","caller":"` + aliceHex + `","token_a":"` + tokenAHex + `","token_b":"` + tokenBHex + `","amount_a_desired":1000,"amount_b_desired":4000}
{"id":"trade","op":"swap","caller":"` + bobHex + `","token_a":"` + tokenAHex + `","token_b":"` + tokenBHex + `","input_token":"` + tokenAHex + `","amount_in":100,"amount_out_min":362}
{"op":"mint","caller":"` + bobHex + `","asset":"` + tokenAHex + `","to":"` + bobHex + `","amount":1}
not json
{"op":"swap","caller":"` + bobHex + `","token_a":"` + tokenAHex + `","token_b":"` + tokenBHex + `","input_token":"` + tokenAHex + `","amount_in":0}
{"op":"remove_liquidity","caller":"` + aliceHex + `","token_a":"` + tokenAHex + `","token_b":"` + tokenBHex + `","lp_tokens":1000}
`

func TestReplayScript(t *testing.T) {
	d, mem := newDispatcher(t, nil)
	results, failures := &collector{}, &collector{}

	stats, err := d.Replay(context.Background(), strings.NewReader(script), ReplayConfig{Results: results, Failures: failures})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if stats.Total != 9 || stats.Applied != 6 || stats.Failed != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	swap := results.records[4].(Result)
	if swap.ID != "trade" || swap.Swap == nil || swap.Swap.AmountOut != 362 {
		t.Fatalf("unexpected swap result: %+v", swap)
	}

	kinds := make([]string, 0, len(failures.records))
	for _, rec := range failures.records {
		kinds = append(kinds, rec.(Failure).Kind)
	}
	want := []string{"unauthorized", "bad_intent", "invalid_input"}
	if strings.Join(kinds, ",") != strings.Join(want, ",") {
		t.Fatalf("failure kinds = %v, want %v", kinds, want)
	}

	bobB, _ := mem.BalanceOf(context.Background(), common.HexToAddress(bobHex), common.HexToAddress(tokenBHex))
	if bobB != 362 {
		t.Fatalf("bob should hold 362 of token b, got %d", bobB)
	}
	withdraw := results.records[5].(Result)
	if withdraw.Withdraw == nil || withdraw.Withdraw.AmountA != 550 {
		t.Fatalf("unexpected withdrawal: %+v", withdraw.Withdraw)
	}
}

func TestDispatchAuthorizerDenies(t *testing.T) {
	d, _ := newDispatcher(t, engine.NewAllowList(common.HexToAddress(bobHex)))
	_, err := d.Dispatch(context.Background(), Intent{
		Op:             OpAddLiquidity,
		Caller:         aliceHex,
		TokenA:         tokenAHex,
		TokenB:         tokenBHex,
		AmountADesired: 1,
		AmountBDesired: 1,
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if ErrorKind(err) != "unauthorized" {
		t.Fatalf("unexpected kind %s", ErrorKind(err))
	}
}

func TestDispatchRejectsMalformed(t *testing.T) {
	d, _ := newDispatcher(t, nil)
	cases := []Intent{
		{Op: OpSwap, Caller: "nope"},
		{Op: OpSwap, Caller: aliceHex, TokenA: tokenAHex},
		{Op: "donate", Caller: aliceHex, TokenA: tokenAHex, TokenB: tokenBHex},
		{Op: OpSwap, Caller: aliceHex, TokenA: tokenAHex, TokenB: tokenBHex, InputToken: "0x1"},
	}
	for i, in := range cases {
		if _, err := d.Dispatch(context.Background(), in); !errors.Is(err, ErrBadIntent) {
			t.Fatalf("case %d: expected ErrBadIntent, got %v", i, err)
		}
	}
}

func TestReplayResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	cp := NewCheckpointStore(filepath.Join(dir, "replay.json"), true)
	lines := strings.Split(strings.TrimSpace(script), "\n")

	d, _ := newDispatcher(t, nil)
	first := strings.Join(lines[:4], "\n")
	stats, err := d.Replay(context.Background(), strings.NewReader(first), ReplayConfig{Input: "intents.jsonl", Checkpoint: cp})
	if err != nil {
		t.Fatalf("first replay: %v", err)
	}
	if stats.Applied != 4 {
		t.Fatalf("first pass stats: %+v", stats)
	}

	saved, ok, err := cp.Load()
	if err != nil || !ok || saved.LastProcessedLine != 4 {
		t.Fatalf("checkpoint after first pass: %+v ok=%v err=%v", saved, ok, err)
	}

	results := &collector{}
	stats, err = d.Replay(context.Background(), strings.NewReader(strings.Join(lines, "\n")), ReplayConfig{Input: "intents.jsonl", Checkpoint: cp, Results: results})
	if err != nil {
		t.Fatalf("second replay: %v", err)
	}
	if stats.Skipped != 4 || stats.Applied != 2 || stats.Failed != 3 {
		t.Fatalf("second pass stats: %+v", stats)
	}
	if results.records[0].(Result).Line != 5 {
		t.Fatalf("replay should resume at line 5, got %+v", results.records[0])
	}

	if _, err := d.Replay(context.Background(), strings.NewReader(""), ReplayConfig{Input: "other.jsonl", Checkpoint: cp}); err == nil {
		t.Fatalf("checkpoint for another input must be rejected")
	}
}
