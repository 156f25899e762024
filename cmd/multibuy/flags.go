package main

import (
	"github.com/urfave/cli/v2"

	"github.com/ligun0805/multibuy/internal/config"
)

var (
	RPCFlag = &cli.StringFlag{
		Name:  "rpc",
		Usage: "JSON-RPC endpoint (http, ws or ipc); overrides RPC_URL",
	}
	LogLevelFlag = &cli.StringFlag{
		Name:  "log.level",
		Usage: "trace, debug, info, warn, error or crit; overrides LOG_LEVEL",
	}
	NetworkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "MultiTokenNetwork address; overrides NETWORK_ADDRESS",
	}
	BancorFlag = &cli.StringFlag{
		Name:  "bancor",
		Usage: "BancorNetwork address; overrides BANCOR_NETWORK",
	}
	MultiBuyerFlag = &cli.StringFlag{
		Name:  "multibuyer",
		Usage: "MultiBuyer forwarder address; overrides MULTIBUYER_ADDRESS",
	}
	SlippageFlag = &cli.IntFlag{
		Name:  "slippage-bps",
		Usage: "tolerated shortfall per conversion in basis points; overrides SLIPPAGE_BPS",
	}
	EthFlag = &cli.StringFlag{
		Name:     "eth",
		Usage:    "amount of ETH to spend, e.g. 0.5",
		Required: true,
	}
	FromFlag = &cli.StringFlag{
		Name:  "from",
		Usage: "sender used for gas estimation when no key is available",
	}
	PromptKeyFlag = &cli.BoolFlag{
		Name:  "prompt-key",
		Usage: "read the signing key from the terminal instead of PRIVATE_KEY",
	}
	YesFlag = &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "send without asking for confirmation",
	}
)

var GlobalFlags = []cli.Flag{RPCFlag, LogLevelFlag}

// settings loads the environment and applies command-line overrides.
func settings(c *cli.Context) (config.Settings, error) {
	st := config.Load()
	if c.IsSet(RPCFlag.Name) {
		st.RPCURL = c.String(RPCFlag.Name)
	}
	if c.IsSet(LogLevelFlag.Name) {
		st.LogLevel = c.String(LogLevelFlag.Name)
	}
	if c.IsSet(NetworkFlag.Name) {
		st.NetworkAddress = c.String(NetworkFlag.Name)
	}
	if c.IsSet(BancorFlag.Name) {
		st.BancorNetwork = c.String(BancorFlag.Name)
	}
	if c.IsSet(MultiBuyerFlag.Name) {
		st.MultiBuyerAddress = c.String(MultiBuyerFlag.Name)
	}
	if c.IsSet(SlippageFlag.Name) {
		st.SlippageBps = c.Int(SlippageFlag.Name)
	}
	return st, st.Validate()
}
