package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

type Config struct {
	HTTPAddr string
	LogLevel string // "debug" | "info" | "warn" | "error"

	// Storage
	Env         string // "dev" | "prod"
	Store       string // memory | sqlite | postgres
	DBPath      string // e.g. "./data/nftledger.db"
	PostgresURL string

	// Collection
	CollectionName        string
	CollectionSymbol      string
	CollectionDescription string
	SupplyCap             uint64 // 0 = uncapped
	Minter                string
	TestMode              bool

	// Limits
	TxWindowSeconds       int
	PermittedDriftSeconds int
	MaxMemoSize           int
	MaxUpdateBatchSize    int
	DefaultTake           int
	MaxTake               int
	MaxApprovals          int
	MaxRevokeApprovals    int

	SingleUseApprovals   bool
	SweepIntervalMinutes int // 0 disables the sweeper

	// Dev seeding (dev env only)
	DevSeedOwners []string
	DevSeedTokens int
}

func FromEnv() Config {
	addr := getenvDefault("NFTLEDGER_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("NFTLEDGER_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	backend := strings.ToLower(getenvDefault("NFTLEDGER_STORE", StoreSQLite))

	return Config{
		HTTPAddr: addr,
		LogLevel: strings.ToLower(getenvDefault("NFTLEDGER_LOG_LEVEL", "info")),

		Env:         env,
		Store:       backend,
		DBPath:      getenvDefault("NFTLEDGER_DB_PATH", "./data/nftledger.db"),
		PostgresURL: os.Getenv("NFTLEDGER_POSTGRES_URL"),

		CollectionName:        getenvDefault("NFTLEDGER_COLLECTION_NAME", "NFT Ledger"),
		CollectionSymbol:      getenvDefault("NFTLEDGER_COLLECTION_SYMBOL", "NFT"),
		CollectionDescription: os.Getenv("NFTLEDGER_COLLECTION_DESCRIPTION"),
		SupplyCap:             getenvUint("NFTLEDGER_SUPPLY_CAP", 0),
		Minter:                strings.TrimSpace(os.Getenv("NFTLEDGER_MINTER")),
		TestMode:              getenvBool("NFTLEDGER_TEST_MODE"),

		TxWindowSeconds:       getenvInt("NFTLEDGER_TX_WINDOW_SECONDS", 24*60*60),
		PermittedDriftSeconds: getenvInt("NFTLEDGER_PERMITTED_DRIFT_SECONDS", 120),
		MaxMemoSize:           getenvInt("NFTLEDGER_MAX_MEMO_SIZE", 32),
		MaxUpdateBatchSize:    getenvInt("NFTLEDGER_MAX_UPDATE_BATCH_SIZE", 100),
		DefaultTake:           getenvInt("NFTLEDGER_DEFAULT_TAKE", 100),
		MaxTake:               getenvInt("NFTLEDGER_MAX_TAKE", 1000),
		MaxApprovals:          getenvInt("NFTLEDGER_MAX_APPROVALS", 100),
		MaxRevokeApprovals:    getenvInt("NFTLEDGER_MAX_REVOKE_APPROVALS", 100),

		SingleUseApprovals:   getenvBool("NFTLEDGER_SINGLE_USE_APPROVALS"),
		SweepIntervalMinutes: getenvInt("NFTLEDGER_SWEEP_INTERVAL_MINUTES", 10),

		DevSeedOwners: splitCSV(os.Getenv("NFTLEDGER_DEV_SEED_OWNERS")),
		DevSeedTokens: getenvInt("NFTLEDGER_DEV_SEED_TOKENS", 5),
	}
}

var (
	ErrUnknownStore       = errors.New("unknown store backend")
	ErrMissingPostgresURL = errors.New("postgres store needs NFTLEDGER_POSTGRES_URL")
	ErrNoMinter           = errors.New("NFTLEDGER_MINTER is required unless NFTLEDGER_TEST_MODE is set")
	ErrTestModeInProd     = errors.New("test mode is not allowed in prod")
)

// Validate reports settings the server cannot run with.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if strings.TrimSpace(c.PostgresURL) == "" {
			return ErrMissingPostgresURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.Store)
	}
	if c.Minter == "" && !c.TestMode {
		return ErrNoMinter
	}
	if c.TestMode && c.Env == "prod" {
		return ErrTestModeInProd
	}
	if c.DefaultTake > c.MaxTake {
		return fmt.Errorf("default take %d exceeds max take %d", c.DefaultTake, c.MaxTake)
	}
	if c.TxWindowSeconds == 0 {
		return errors.New("tx window must be positive")
	}
	return nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvUint(key string, def uint64) uint64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	return strings.EqualFold(v, "true") || v == "1"
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
