package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/multibuy/internal/bancor"
)

// Settings keeps all configuration options.
type Settings struct {
	RPCURL  string
	ChainID string // optional; checked against the node when set

	NetworkAddress    string // MultiTokenNetwork registry
	BancorNetwork     string
	MultiBuyerAddress string
	PriceAPIURL       string

	BridgeSymbol string
	NativeSymbol string
	SlippageBps  int

	PrivateKeyHex string

	PollInterval      time.Duration
	HTTPTimeout       time.Duration
	RPCMaxConcurrency int
	DeployerSlots     int
	BaseFeeMul        int64
	BufferPct         int64

	// Converters overrides the default route registry, "SYM=token:converter,...".
	Converters string
	LogLevel   string
}

// Load reads settings from environment supporting both UPPER_CASE and lower_case keys.
func Load() Settings {
	get := func(keys []string, def string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v
			}
		}
		return def
	}
	getInt := func(keys []string, def int) int {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		return def
	}
	getInt64 := func(keys []string, def int64) int64 {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		return def
	}
	getMillis := func(keys []string, def int) time.Duration {
		return time.Duration(getInt(keys, def)) * time.Millisecond
	}

	st := Settings{}
	st.RPCURL = get([]string{"rpc_url", "RPC_URL"}, "https://eth.llamarpc.com")
	st.ChainID = get([]string{"chain_id", "CHAIN_ID"}, "")

	st.NetworkAddress = get([]string{"network_address", "NETWORK_ADDRESS"}, "")
	st.BancorNetwork = get([]string{"bancor_network", "BANCOR_NETWORK"}, "")
	st.MultiBuyerAddress = get([]string{"multibuyer_address", "MULTIBUYER_ADDRESS"}, "")
	st.PriceAPIURL = get([]string{"price_api_url", "PRICE_API_URL"}, "")

	st.BridgeSymbol = get([]string{"bridge_symbol", "BRIDGE_SYMBOL"}, "BNT")
	st.NativeSymbol = get([]string{"native_symbol", "NATIVE_SYMBOL"}, "ETH")
	st.SlippageBps = getInt([]string{"slippage_bps", "SLIPPAGE_BPS"}, 100)

	st.PrivateKeyHex = get([]string{"private_key", "PRIVATE_KEY"}, "")

	st.PollInterval = getMillis([]string{"poll_interval_ms", "POLL_INTERVAL_MS"}, 1000)
	st.HTTPTimeout = getMillis([]string{"http_timeout_ms", "HTTP_TIMEOUT_MS"}, 8000)
	st.RPCMaxConcurrency = getInt([]string{"rpc_max_concurrency", "RPC_MAX_CONCURRENCY", "GUI_RPC_MAX_CONCURRENCY"}, 16)
	st.DeployerSlots = getInt([]string{"deployer_slots", "DEPLOYER_SLOTS"}, 10)
	st.BaseFeeMul = getInt64([]string{"basefee_mul", "BASE_MUL"}, 2)
	st.BufferPct = getInt64([]string{"buffer_pct", "BUFFER_PCT"}, 5)

	st.Converters = get([]string{"converters", "CONVERTERS"}, "")
	st.LogLevel = get([]string{"log_level", "LOG_LEVEL"}, "info")
	return st
}

// Validate rejects malformed values. Empty addresses are allowed; commands that
// need one report it themselves.
func (s Settings) Validate() error {
	for name, v := range map[string]string{
		"NETWORK_ADDRESS":    s.NetworkAddress,
		"BANCOR_NETWORK":     s.BancorNetwork,
		"MULTIBUYER_ADDRESS": s.MultiBuyerAddress,
	} {
		if v != "" && !common.IsHexAddress(v) {
			return fmt.Errorf("%s: %q is not an address", name, v)
		}
	}
	if s.ChainID != "" {
		if _, err := strconv.ParseUint(s.ChainID, 10, 64); err != nil {
			return fmt.Errorf("CHAIN_ID: %q is not a number", s.ChainID)
		}
	}
	if s.SlippageBps < 0 || s.SlippageBps > 10_000 {
		return fmt.Errorf("SLIPPAGE_BPS: %d outside [0, 10000]", s.SlippageBps)
	}
	if s.RPCMaxConcurrency <= 0 || s.RPCMaxConcurrency > 256 {
		return fmt.Errorf("RPC_MAX_CONCURRENCY: %d outside [1, 256]", s.RPCMaxConcurrency)
	}
	if _, err := s.Routes(); err != nil {
		return fmt.Errorf("CONVERTERS: %w", err)
	}
	return nil
}

// Routes returns the default route registry with CONVERTERS overrides applied.
func (s Settings) Routes() (bancor.Routes, error) {
	over, err := bancor.ParseRoutes(s.Converters)
	if err != nil {
		return nil, err
	}
	return bancor.DefaultRoutes().Merge(over), nil
}

// RequireAddress parses a configured address, naming the key when it is missing.
func RequireAddress(key, v string) (common.Address, error) {
	if v == "" {
		return common.Address{}, fmt.Errorf("%s is not set", key)
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("%s: %q is not an address", key, v)
	}
	return common.HexToAddress(v), nil
}
