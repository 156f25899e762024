package basket

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ligun0805/multibuy/internal/payload"
)

const (
	DefaultMaxConcurrency = 16
	DefaultCacheSize      = 256
)

type ReaderConfig struct {
	// MaxConcurrency bounds parallel eth_calls per snapshot.
	MaxConcurrency int
	// CacheSize is the number of tokens whose symbol and decimals are remembered.
	CacheSize int
	Logger    log.Logger
}

type tokenMeta struct {
	symbol   string
	decimals uint8
}

// Reader reads basket composition and token metadata from chain.
type Reader struct {
	caller ethereum.ContractCaller
	limit  int
	meta   *lru.Cache[common.Address, tokenMeta]
	log    log.Logger
}

// Snapshot is the state of a basket at the time it was read.
type Snapshot struct {
	Address     common.Address
	TotalSupply *big.Int
	Tokens      []payload.TokenInfo
}

// Symbols returns the token symbols in basket order.
func (s *Snapshot) Symbols() []string {
	out := make([]string, len(s.Tokens))
	for i, t := range s.Tokens {
		out[i] = t.Symbol
	}
	return out
}

// Token returns the entry with the given symbol.
func (s *Snapshot) Token(symbol string) (payload.TokenInfo, bool) {
	for _, t := range s.Tokens {
		if t.Symbol == symbol {
			return t, true
		}
	}
	return payload.TokenInfo{}, false
}

func NewReader(caller ethereum.ContractCaller, cfg ReaderConfig) *Reader {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Root()
	}
	cache, err := lru.New[common.Address, tokenMeta](cfg.CacheSize)
	if err != nil {
		panic(err) // only fails for non-positive sizes
	}
	return &Reader{caller: caller, limit: cfg.MaxConcurrency, meta: cache, log: cfg.Logger}
}

// Tokens returns allTokens() of the basket.
func (r *Reader) Tokens(ctx context.Context, basket common.Address) ([]common.Address, error) {
	v, err := read(ctx, r.caller, multiTokenContract, basket, "allTokens")
	if err != nil {
		return nil, err
	}
	tokens, ok := v.([]common.Address)
	if !ok {
		return nil, fmt.Errorf("allTokens(): unexpected %T", v)
	}
	return tokens, nil
}

// Weights returns allWeights() of the basket, index-aligned with Tokens.
func (r *Reader) Weights(ctx context.Context, basket common.Address) ([]*big.Int, error) {
	v, err := read(ctx, r.caller, multiTokenContract, basket, "allWeights")
	if err != nil {
		return nil, err
	}
	weights, ok := v.([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("allWeights(): unexpected %T", v)
	}
	return weights, nil
}

func (r *Reader) TotalSupply(ctx context.Context, basket common.Address) (*big.Int, error) {
	v, err := read(ctx, r.caller, multiTokenContract, basket, "totalSupply")
	if err != nil {
		return nil, err
	}
	supply, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("totalSupply(): unexpected %T", v)
	}
	return supply, nil
}

func (r *Reader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	v, err := read(ctx, r.caller, erc20Contract, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	bal, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf(): unexpected %T", v)
	}
	return bal, nil
}

// Metadata returns the token's symbol and decimals, consulting the cache first.
func (r *Reader) Metadata(ctx context.Context, token common.Address) (string, uint8, error) {
	if m, ok := r.meta.Get(token); ok {
		return m.symbol, m.decimals, nil
	}
	sym, err := r.symbol(ctx, token)
	if err != nil {
		return "", 0, err
	}
	dec, err := r.decimals(ctx, token)
	if err != nil {
		return "", 0, err
	}
	r.meta.Add(token, tokenMeta{symbol: sym, decimals: dec})
	return sym, dec, nil
}

// symbol supports both dynamic string and bytes32 return encodings.
func (r *Reader) symbol(ctx context.Context, token common.Address) (string, error) {
	out, err := callWithRetry(ctx, r.caller, token, erc20Contract.Methods["symbol"].ID)
	if err != nil {
		return "", fmt.Errorf("symbol() on %s: %s: %w", token.Hex(), classifyCallError(err), err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("symbol() on %s: %w", token.Hex(), ErrNoCode)
	}
	if len(out) >= 64 && new(big.Int).SetBytes(out[:32]).Cmp(big.NewInt(32)) == 0 {
		l := new(big.Int).SetBytes(out[32:64])
		if l.Sign() == 0 {
			return "", nil
		}
		if l.IsInt64() && 64+l.Int64() <= int64(len(out)) {
			return string(out[64 : 64+l.Int64()]), nil
		}
	}
	return strings.TrimRight(string(out), "\x00"), nil
}

func (r *Reader) decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := callWithRetry(ctx, r.caller, token, erc20Contract.Methods["decimals"].ID)
	if err != nil {
		return 0, fmt.Errorf("decimals() on %s: %s: %w", token.Hex(), classifyCallError(err), err)
	}
	if len(out) == 0 {
		r.log.Debug("Token returned no decimals, assuming 18", "token", token)
		return 18, nil
	}
	return out[len(out)-1], nil
}

// Snapshot reads the full composition of a basket. Per-token reads run in parallel,
// bounded by the configured concurrency; any failure fails the whole snapshot.
func (r *Reader) Snapshot(ctx context.Context, basket common.Address) (*Snapshot, error) {
	tokens, err := r.Tokens(ctx, basket)
	if err != nil {
		return nil, err
	}
	weights, err := r.Weights(ctx, basket)
	if err != nil {
		return nil, err
	}
	if len(weights) != len(tokens) {
		return nil, fmt.Errorf("basket %s: %d tokens but %d weights", basket.Hex(), len(tokens), len(weights))
	}
	supply, err := r.TotalSupply(ctx, basket)
	if err != nil {
		return nil, err
	}

	infos := make([]payload.TokenInfo, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for i, tok := range tokens {
		g.Go(func() error {
			sym, dec, err := r.Metadata(gctx, tok)
			if err != nil {
				return err
			}
			bal, err := r.BalanceOf(gctx, tok, basket)
			if err != nil {
				return err
			}
			infos[i] = payload.TokenInfo{
				Address:  tok,
				Symbol:   sym,
				Decimals: dec,
				Balance:  bal,
				Weight:   weights[i],
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.log.Debug("Read basket", "basket", basket, "tokens", len(infos), "supply", supply)
	return &Snapshot{Address: basket, TotalSupply: supply, Tokens: infos}, nil
}
