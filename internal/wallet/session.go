package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

// ExplorerURL is the address page prefix used in account logs.
const ExplorerURL = "https://etherscan.io/address/"

var ErrNoAccount = errors.New("no account available")

// Session is an open connection to a node plus the account used for purchases.
// It is created by the application and passed to whatever needs chain access.
type Session struct {
	rpc     *rpc.Client
	client  *ethclient.Client
	chainID *big.Int
	log     log.Logger

	mu  sync.RWMutex
	key *ecdsa.PrivateKey
}

// Dial connects to rawurl. HTTP endpoints get a pooled transport with the given timeout.
func Dial(ctx context.Context, rawurl string, timeout time.Duration, logger log.Logger) (*Session, error) {
	var (
		rc  *rpc.Client
		err error
	)
	if strings.HasPrefix(rawurl, "http://") || strings.HasPrefix(rawurl, "https://") {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient := &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    100,
				IdleConnTimeout: 90 * time.Second,
			},
		}
		rc, err = rpc.DialHTTPWithClient(rawurl, httpClient)
	} else {
		rc, err = rpc.DialContext(ctx, rawurl)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawurl, err)
	}
	s, err := NewSession(ctx, rc, logger)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return s, nil
}

// NewSession wraps an existing RPC client and reads its chain id.
func NewSession(ctx context.Context, rc *rpc.Client, logger log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.Root()
	}
	client := ethclient.NewClient(rc)
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	logger.Debug("Connected", "chain", chainID)
	return &Session{rpc: rc, client: client, chainID: chainID, log: logger}, nil
}

func (s *Session) Client() *ethclient.Client { return s.client }

func (s *Session) ChainID() *big.Int { return new(big.Int).Set(s.chainID) }

// UseKey makes the session sign with the given hex private key.
func (s *Session) UseKey(hexKey string) (common.Address, error) {
	key, err := ParseKey(hexKey)
	if err != nil {
		return common.Address{}, err
	}
	s.mu.Lock()
	s.key = key
	s.mu.Unlock()
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// Key returns the signing key, nil when none was configured.
func (s *Session) Key() *ecdsa.PrivateKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// Accounts lists usable accounts: the local key's address, else the node's eth_accounts.
func (s *Session) Accounts(ctx context.Context) ([]common.Address, error) {
	if key := s.Key(); key != nil {
		return []common.Address{crypto.PubkeyToAddress(key.PublicKey)}, nil
	}
	var accts []common.Address
	if err := s.rpc.CallContext(ctx, &accts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts: %w", err)
	}
	return accts, nil
}

// Account returns the first usable account.
func (s *Session) Account(ctx context.Context) (common.Address, error) {
	accts, err := s.Accounts(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if len(accts) == 0 {
		return common.Address{}, ErrNoAccount
	}
	return accts[0], nil
}

func (s *Session) Close() {
	s.client.Close()
}

// ParseKey parses a hex private key with or without 0x prefix.
func ParseKey(s string) (*ecdsa.PrivateKey, error) {
	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if len(h) == 0 {
		return nil, errors.New("empty private key")
	}
	key, err := crypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("bad private key: %w", err)
	}
	return key, nil
}
