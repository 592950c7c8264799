package config

import (
	"os"
	"strconv"
	"strings"
)

// Settings keeps all configuration options.
// Addresses stay as strings here; the CLI validates and converts them.
type Settings struct {
	RPCURL  string
	ChainID string

	PositionManager string
	Factory         string
	FarmingCenter   string
	EternalFarming  string
	Router          string
	Quoter          string

	EdgeBps          int
	HeartbeatEdgeBps int
	BumpTicks        int64
	KeyScanBack      int
	KeyScanFwd       int
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
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
		return def
	}
	getInt64 := func(keys []string, def int64) int64 {
		s := get(keys, "")
		if s == "" {
			return def
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n
		}
		return def
	}

	st := Settings{}
	st.RPCURL = get([]string{"rpc_url", "RPC_URL"}, "https://polygon-rpc.com")
	st.ChainID = get([]string{"chain_id", "CHAIN_ID"}, "")

	st.PositionManager = get([]string{"position_manager", "POSITION_MANAGER"}, "")
	st.Factory = get([]string{"factory", "FACTORY"}, "")
	st.FarmingCenter = get([]string{"farming_center", "FARMING_CENTER"}, "")
	st.EternalFarming = get([]string{"eternal_farming", "ETERNAL_FARMING"}, "")
	st.Router = get([]string{"router", "ROUTER"}, "")
	st.Quoter = get([]string{"quoter", "QUOTER"}, "")

	st.EdgeBps = getInt([]string{"edge_bps", "EDGE_BPS"}, 1500)
	st.HeartbeatEdgeBps = getInt([]string{"heartbeat_edge_bps", "HEARTBEAT_EDGE_BPS"}, 500)
	st.BumpTicks = getInt64([]string{"bump_ticks", "BUMP_TICKS"}, 0)
	st.KeyScanBack = getInt([]string{"key_scan_back", "KEY_SCAN_BACK"}, 64)
	st.KeyScanFwd = getInt([]string{"key_scan_fwd", "KEY_SCAN_FWD"}, 8)

	return st
}
