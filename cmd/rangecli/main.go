package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/avetls/rangekeeper/internal/chain"
	"github.com/avetls/rangekeeper/internal/config"
	"github.com/avetls/rangekeeper/internal/forensics"
	"github.com/avetls/rangekeeper/internal/rpc"
)

const usage = `rangekeeper - concentrated-liquidity position tooling

Usage:
  rangecli status   <positionID>
  rangecli plan     <positionID> [amount0 amount1]
  rangecli diagnose <txHash>
  rangecli send-raw <signedTxHex> BROADCAST

Configuration comes from the environment (.env / .env.local):
  RPC_URL, CHAIN_ID, POSITION_MANAGER, FACTORY, FARMING_CENTER,
  ETERNAL_FARMING, EDGE_BPS, HEARTBEAT_EDGE_BPS, BUMP_TICKS,
  KEY_SCAN_BACK, KEY_SCAN_FWD`

type app struct {
	cfg    config.Settings
	rpc    *rpc.Client
	reader *chain.Reader
	log    *zap.Logger
}

func main() {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	if len(os.Args) < 2 {
		die(usage)
	}

	cfg := config.Load()
	log, err := zap.NewDevelopment()
	must(err, "logger")
	defer log.Sync()

	client := rpc.NewClient(cfg.RPCURL, rpc.WithLogger(log.Named("rpc")))
	a := &app{
		cfg:    cfg,
		rpc:    client,
		reader: chain.NewReader(client, contractsFromEnv(cfg)),
		log:    log,
	}

	ctx := context.Background()
	args := os.Args[2:]

	switch os.Args[1] {
	case "status":
		if len(args) != 1 {
			die(usage)
		}
		must(a.status(ctx, mustBig(args[0])), "status")
	case "plan":
		if len(args) != 1 && len(args) != 3 {
			die(usage)
		}
		want0, want1 := big.NewInt(0), big.NewInt(0)
		if len(args) == 3 {
			want0, want1 = mustBig(args[1]), mustBig(args[2])
		}
		must(a.plan(ctx, mustBig(args[0]), want0, want1), "plan")
	case "diagnose":
		if len(args) != 1 {
			die(usage)
		}
		eng := forensics.NewEngine(a.rpc, a.reader, log.Named("forensics"))
		report, err := eng.Diagnose(ctx, common.HexToHash(args[0]))
		must(err, "diagnose")
		printReport(report)
	case "send-raw":
		if len(args) != 2 {
			die(usage)
		}
		hash, err := chain.Broadcast(ctx, a.rpc, args[0], args[1])
		must(err, "send-raw")
		fmt.Println("broadcast accepted:", hash.Hex())
	default:
		die(usage)
	}
}

func contractsFromEnv(cfg config.Settings) chain.Contracts {
	return chain.Contracts{
		PositionManager: mustAddr("POSITION_MANAGER", cfg.PositionManager),
		Factory:         mustAddr("FACTORY", cfg.Factory),
		FarmingCenter:   mustAddr("FARMING_CENTER", cfg.FarmingCenter),
		EternalFarming:  mustAddr("ETERNAL_FARMING", cfg.EternalFarming),
		Router:          optAddr(cfg.Router),
		Quoter:          optAddr(cfg.Quoter),
	}
}

func mustAddr(key, v string) common.Address {
	if !common.IsHexAddress(strings.TrimSpace(v)) {
		die(key + " is missing or not a valid address in env")
	}
	return common.HexToAddress(v)
}

func optAddr(v string) common.Address {
	if common.IsHexAddress(strings.TrimSpace(v)) {
		return common.HexToAddress(v)
	}
	return common.Address{}
}

func mustBig(s string) *big.Int {
	s = strings.TrimSpace(s)
	z := new(big.Int)
	var ok bool
	if strings.HasPrefix(s, "0x") {
		z, ok = z.SetString(s[2:], 16)
	} else {
		z, ok = z.SetString(s, 10)
	}
	if !ok {
		die("bad number: " + s)
	}
	return z
}

func must(err error, msg string) {
	if err != nil {
		die(msg + ": " + err.Error())
	}
}

func die(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
