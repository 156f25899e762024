package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ligun0805/multibuy/internal/bancor"
	"github.com/ligun0805/multibuy/internal/basket"
	"github.com/ligun0805/multibuy/internal/buyer"
	"github.com/ligun0805/multibuy/internal/config"
	"github.com/ligun0805/multibuy/internal/display"
	"github.com/ligun0805/multibuy/internal/multibuyer"
	"github.com/ligun0805/multibuy/internal/payload"
	"github.com/ligun0805/multibuy/internal/prices"
	"github.com/ligun0805/multibuy/internal/wallet"
)

var basketsCommand = &cli.Command{
	Name:  "baskets",
	Usage: "list deployers and baskets registered in the MultiTokenNetwork",
	Flags: []cli.Flag{NetworkFlag},
	Action: func(c *cli.Context) error {
		st, err := settings(c)
		if err != nil {
			return err
		}
		addr, err := config.RequireAddress("NETWORK_ADDRESS", st.NetworkAddress)
		if err != nil {
			return err
		}
		sess, err := connect(c, st)
		if err != nil {
			return err
		}
		defer sess.Close()

		n := basket.NewNetwork(sess.Client(), addr)
		deployers, err := n.Deployers(c.Context, st.DeployerSlots)
		if err != nil {
			return err
		}
		baskets, err := n.Multitokens(c.Context)
		if err != nil {
			return err
		}
		display.AddressList(os.Stdout, "Deployers", deployers)
		display.AddressList(os.Stdout, "Baskets", baskets)
		return nil
	},
}

var tokensCommand = &cli.Command{
	Name:      "tokens",
	Usage:     "show the tokens, weights and reserves of a basket",
	ArgsUsage: "<basket>",
	Action: func(c *cli.Context) error {
		st, err := settings(c)
		if err != nil {
			return err
		}
		addr, err := basketArg(c)
		if err != nil {
			return err
		}
		sess, err := connect(c, st)
		if err != nil {
			return err
		}
		defer sess.Close()

		snap, err := newReader(st, sess).Snapshot(c.Context, addr)
		if err != nil {
			return err
		}
		fmt.Printf("Basket %s  total supply %s\n", snap.Address.Hex(), display.FormatUnits(snap.TotalSupply, payload.NativeDecimals))
		display.TokenTable(os.Stdout, snap.Address, snap.Tokens)
		return nil
	},
}

var pricesCommand = &cli.Command{
	Name:      "prices",
	Usage:     "quote token prices against the native coin",
	ArgsUsage: "[symbol...]",
	Action: func(c *cli.Context) error {
		st, err := settings(c)
		if err != nil {
			return err
		}
		symbols := c.Args().Slice()
		if len(symbols) == 0 {
			symbols = bancor.DefaultRoutes().Symbols()
		}
		for i := range symbols {
			symbols[i] = strings.ToUpper(symbols[i])
		}
		q, err := prices.NewClient(st.PriceAPIURL, st.HTTPTimeout, nil).Quote(c.Context, symbols, st.NativeSymbol)
		if err != nil {
			return err
		}
		display.QuoteTable(os.Stdout, q, st.NativeSymbol)
		return nil
	},
}

var planCommand = &cli.Command{
	Name:      "plan",
	Usage:     "build the purchase calldata for a basket without sending it",
	ArgsUsage: "<basket>",
	Flags:     []cli.Flag{BancorFlag, SlippageFlag, EthFlag},
	Action: func(c *cli.Context) error {
		st, err := settings(c)
		if err != nil {
			return err
		}
		params, err := buyParams(c, st)
		if err != nil {
			return err
		}
		params.PlanOnly = true
		sess, err := connect(c, st)
		if err != nil {
			return err
		}
		defer sess.Close()

		b, err := newBuyer(st, sess, false)
		if err != nil {
			return err
		}
		res, err := b.Run(c.Context, params)
		if err != nil {
			return err
		}
		printPlan(st, res)
		fmt.Printf("Call data (%s):\n%s\n", res.Mode.Method(), hexutil.Encode(res.CallData))
		return nil
	},
}

var buyCommand = &cli.Command{
	Name:      "buy",
	Usage:     "buy into a basket proportionally with ETH",
	ArgsUsage: "<basket>",
	Flags:     []cli.Flag{BancorFlag, MultiBuyerFlag, SlippageFlag, EthFlag, FromFlag, PromptKeyFlag, YesFlag},
	Action: func(c *cli.Context) error {
		st, err := settings(c)
		if err != nil {
			return err
		}
		params, err := buyParams(c, st)
		if err != nil {
			return err
		}
		keyHex, keySource := st.PrivateKeyHex, "PRIVATE_KEY"
		if c.Bool(PromptKeyFlag.Name) {
			if keyHex, err = readPassword("Private key (hex): "); err != nil {
				return err
			}
			keySource = "prompt"
		}

		sess, err := connect(c, st)
		if err != nil {
			return err
		}
		defer sess.Close()

		if keyHex != "" {
			from, err := sess.UseKey(keyHex)
			if err != nil {
				return err
			}
			log.Info("Using local key", "account", from, "source", keySource, "key", display.MaskHex(keyHex))
			params.Key = sess.Key()
			if !c.Bool(YesFlag.Name) {
				in := bufio.NewReader(os.Stdin)
				params.Confirm = func(res *buyer.Result) bool {
					printPlan(st, res)
					return yes(prompt(in, os.Stderr, fmt.Sprintf("Send %s ETH via %s? [y/N] ",
						display.FormatUnits(res.Value, payload.NativeDecimals), res.Mode.Method())))
				}
			}
		} else {
			from, err := senderArg(c, sess)
			if err != nil {
				return err
			}
			params.From = from
		}

		b, err := newBuyer(st, sess, true)
		if err != nil {
			return err
		}
		res, err := b.Run(c.Context, params)
		if errors.Is(err, buyer.ErrAborted) {
			fmt.Fprintln(os.Stderr, "Aborted.")
			return nil
		}
		if err != nil {
			return err
		}
		if res.Tx != nil {
			fmt.Printf("Transaction %s\n", res.Tx.Hash().Hex())
			fmt.Printf("Raw: %s\n", multibuyer.TxAsHex(res.Tx))
			return nil
		}
		printPlan(st, res)
		d := res.Unsigned
		fmt.Println("No signing key; submit this transaction from your wallet:")
		fmt.Printf("  To:    %s\n", d.To.Hex())
		fmt.Printf("  Value: %s (%s ETH)\n", d.Value, display.FormatUnits(d.Value, payload.NativeDecimals))
		fmt.Printf("  Gas:   %d\n", d.Gas)
		fmt.Printf("  Data:  %s\n", hexutil.Encode(d.Data))
		return nil
	},
}

var watchCommand = &cli.Command{
	Name:  "watch",
	Usage: "follow the node's active account until interrupted",
	Action: func(c *cli.Context) error {
		st, err := settings(c)
		if err != nil {
			return err
		}
		sess, err := connect(c, st)
		if err != nil {
			return err
		}
		defer sess.Close()

		w := wallet.WatchAccounts(c.Context, sess, st.PollInterval, func(prev, next common.Address) {
			if next == (common.Address{}) {
				log.Warn("Account disconnected", "previous", prev)
				return
			}
			log.Info("Account changed", "account", next, "explorer", wallet.ExplorerURL+next.Hex())
		})
		defer w.Stop()
		<-c.Context.Done()
		return nil
	},
}

// connect dials the configured node and checks CHAIN_ID when it is set.
func connect(c *cli.Context, st config.Settings) (*wallet.Session, error) {
	sess, err := wallet.Dial(c.Context, st.RPCURL, 0, nil)
	if err != nil {
		return nil, err
	}
	if st.ChainID != "" && sess.ChainID().String() != st.ChainID {
		sess.Close()
		return nil, fmt.Errorf("node is on chain %s, CHAIN_ID is %s", sess.ChainID(), st.ChainID)
	}
	return sess, nil
}

func newReader(st config.Settings, sess *wallet.Session) *basket.Reader {
	return basket.NewReader(sess.Client(), basket.ReaderConfig{MaxConcurrency: st.RPCMaxConcurrency})
}

// newBuyer wires the purchase pipeline. The forwarder address is only required
// when the result will be described or sent.
func newBuyer(st config.Settings, sess *wallet.Session, needForwarder bool) (*buyer.Buyer, error) {
	bancorAddr, err := config.RequireAddress("BANCOR_NETWORK", st.BancorNetwork)
	if err != nil {
		return nil, err
	}
	var fwdAddr common.Address
	if needForwarder || st.MultiBuyerAddress != "" {
		if fwdAddr, err = config.RequireAddress("MULTIBUYER_ADDRESS", st.MultiBuyerAddress); err != nil {
			return nil, err
		}
	}
	routes, err := st.Routes()
	if err != nil {
		return nil, err
	}
	fwd := multibuyer.NewForwarder(fwdAddr, sess.Client(), multibuyer.ForwarderConfig{
		BaseFeeMul:   st.BaseFeeMul,
		GasBufferPct: st.BufferPct,
	})
	return buyer.New(
		newReader(st, sess),
		prices.NewClient(st.PriceAPIURL, st.HTTPTimeout, nil),
		bancor.NewNetwork(bancorAddr, routes),
		fwd,
		nil,
	), nil
}

func basketArg(c *cli.Context) (common.Address, error) {
	if c.NArg() != 1 {
		return common.Address{}, errors.New("expected exactly one basket address")
	}
	a := c.Args().First()
	if !common.IsHexAddress(a) {
		return common.Address{}, fmt.Errorf("%q is not an address", a)
	}
	return common.HexToAddress(a), nil
}

func buyParams(c *cli.Context, st config.Settings) (buyer.Params, error) {
	addr, err := basketArg(c)
	if err != nil {
		return buyer.Params{}, err
	}
	amount, err := display.ParseUnits(c.String(EthFlag.Name), payload.NativeDecimals)
	if err != nil {
		return buyer.Params{}, fmt.Errorf("--eth: %w", err)
	}
	if amount.Sign() <= 0 {
		return buyer.Params{}, errors.New("--eth must be greater than zero")
	}
	return buyer.Params{
		Basket:       addr,
		TotalEth:     amount,
		BridgeSymbol: st.BridgeSymbol,
		NativeSymbol: st.NativeSymbol,
		SlippageBps:  slippage(st.SlippageBps),
		Logf: func(format string, a ...any) {
			log.Debug(fmt.Sprintf(format, a...))
		},
	}, nil
}

// slippage maps a configured SLIPPAGE_BPS, where 0 means none, onto payload.Request.
func slippage(bps int) int {
	if bps == 0 {
		return payload.NoSlippage
	}
	return bps
}

// senderArg picks the gas estimation sender: --from, else the node's first account.
func senderArg(c *cli.Context, sess *wallet.Session) (common.Address, error) {
	if s := c.String(FromFlag.Name); s != "" {
		if !common.IsHexAddress(s) {
			return common.Address{}, fmt.Errorf("--from: %q is not an address", s)
		}
		return common.HexToAddress(s), nil
	}
	a, err := sess.Account(c.Context)
	if errors.Is(err, wallet.ErrNoAccount) {
		log.Warn("No account available, estimating gas from the zero address")
		return common.Address{}, nil
	}
	return a, err
}

func printPlan(st config.Settings, res *buyer.Result) {
	display.QuoteTable(os.Stdout, res.Quote, st.NativeSymbol)
	display.PlanTable(os.Stdout, res.Plan.Plan)
	fmt.Printf("Mode %s  bridge %s %s (min %s)\n", res.Mode,
		display.FormatUnits(res.Plan.BridgeAmount, bridgeDecimals(res, st.BridgeSymbol)), st.BridgeSymbol,
		display.FormatUnits(res.Plan.BridgeMinReturn, bridgeDecimals(res, st.BridgeSymbol)))
}

func bridgeDecimals(res *buyer.Result, symbol string) uint8 {
	if t, ok := res.Snapshot.Token(symbol); ok {
		return t.Decimals
	}
	return payload.NativeDecimals
}
