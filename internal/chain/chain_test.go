package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type fakeCaller struct {
	responses map[string][]byte
	calls     map[string]int
}

func newFakeCaller(t *testing.T, outputs map[string]interface{}) *fakeCaller {
	t.Helper()
	parsed, err := ERC20ABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	f := &fakeCaller{responses: make(map[string][]byte), calls: make(map[string]int)}
	for method, value := range outputs {
		data, err := parsed.Methods[method].Outputs.Pack(value)
		if err != nil {
			t.Fatalf("pack %s: %v", method, err)
		}
		f.responses[method] = data
	}
	return f
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	f.calls[method.Name]++
	resp, ok := f.responses[method.Name]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func TestFetchTokenMeta(t *testing.T) {
	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	caller := newFakeCaller(t, map[string]interface{}{
		"decimals": uint8(6),
		"symbol":   "USDC",
		"name":     "USD Coin",
	})

	meta, err := FetchTokenMeta(context.Background(), caller, token, nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if meta.Decimals != 6 || meta.Symbol != "USDC" || meta.Name != "USD Coin" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if meta.Address != token.Hex() {
		t.Fatalf("unexpected address: %s", meta.Address)
	}
}

func TestFetchTokenMetaRequiresDecimals(t *testing.T) {
	caller := newFakeCaller(t, map[string]interface{}{"symbol": "X"})
	if _, err := FetchTokenMeta(context.Background(), caller, common.Address{}, nil); err == nil {
		t.Fatalf("expected error without decimals")
	}
}

func TestTokenMetaCacheLookup(t *testing.T) {
	token := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	caller := newFakeCaller(t, map[string]interface{}{})
	cache := NewTokenMetaCache()

	meta := cache.Lookup(context.Background(), caller, token, nil)
	if meta.Decimals != 18 {
		t.Fatalf("expected fallback decimals, got %d", meta.Decimals)
	}
	cache.Lookup(context.Background(), caller, token, nil)
	if caller.calls["decimals"] != 1 {
		t.Fatalf("expected one decimals call, got %d", caller.calls["decimals"])
	}
}

func TestBalanceOf(t *testing.T) {
	caller := newFakeCaller(t, map[string]interface{}{"balanceOf": big.NewInt(12345)})

	bal, err := BalanceOf(context.Background(), caller, common.Address{1}, common.Address{2}, nil)
	if err != nil {
		t.Fatalf("balanceOf: %v", err)
	}
	if bal.Uint64() != 12345 {
		t.Fatalf("unexpected balance: %s", bal)
	}
	if _, err := BalanceOf(context.Background(), nil, common.Address{1}, common.Address{2}, nil); err == nil {
		t.Fatalf("expected error for nil caller")
	}
}

type fakeHead struct {
	heights []uint64
	fails   int
}

func (f *fakeHead) LatestBlockNumber(context.Context) (uint64, error) {
	if f.fails > 0 {
		f.fails--
		return 0, errors.New("connection refused")
	}
	n := f.heights[0]
	if len(f.heights) > 1 {
		f.heights = f.heights[1:]
	}
	return n, nil
}

func TestChainClockRefresh(t *testing.T) {
	head := &fakeHead{heights: []uint64{100, 90, 120}, fails: 2}
	clock := NewChainClock(head, ClockOptions{MaxRetries: 3, RetryDelay: time.Millisecond})

	if clock.Current() != 0 {
		t.Fatalf("expected zero before refresh")
	}
	for _, want := range []uint64{100, 100, 120} {
		got, err := clock.Refresh(context.Background())
		if err != nil {
			t.Fatalf("refresh: %v", err)
		}
		if got != want || clock.Current() != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
}

func TestChainClockRefreshGivesUp(t *testing.T) {
	head := &fakeHead{heights: []uint64{5}, fails: 5}
	clock := NewChainClock(head, ClockOptions{MaxRetries: 1, RetryDelay: time.Millisecond})
	if _, err := clock.Refresh(context.Background()); err == nil {
		t.Fatalf("expected error after retries")
	}
	if clock.Current() != 0 {
		t.Fatalf("clock moved on failure")
	}
}

func TestParseAddresses(t *testing.T) {
	addrs, err := ParseAddresses([]string{" 0x00000000000000000000000000000000000000aa ", ""})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(addrs) != 1 {
		t.Fatalf("expected one address, got %d", len(addrs))
	}
	if _, err := ParseAddresses([]string{"nope"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ParseAddress(""); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
