package constant

import "os"

// <NodeDir>/                    (e.g., /home/raffle/.raffled)
// └── config/
//	└── raffled_config.json
// └── databases/
//	└── raffles.db
// └── keys/
//	└── hot_wallet.json

const (
	NodeDir = ".raffled"

	ConfigSubdir   = "config"
	ConfigFileName = "raffled_config.json"

	DatabasesSubdir = "databases"
	DatabaseFile    = "raffles.db"

	KeysSubdir        = "keys"
	HotWalletKeyFile  = "hot_wallet.json"
	HotWalletKeyEnv   = "RAFFLED_HOT_WALLET_KEY"
	EnvPrefix         = "RAFFLED"
	LamportsPerSOL    = uint64(1_000_000_000)
	NoRevenueSentinel = "NO_REVENUE"
)

var DefaultNodeHome = os.ExpandEnv("$HOME/") + NodeDir
