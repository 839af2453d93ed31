package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"stakefarm/crypto"
)

// Config captures the runtime configuration of farmd.
type Config struct {
	ListenAddress  string `toml:"ListenAddress"`
	DataDir        string `toml:"DataDir"`
	StorageBackend string `toml:"StorageBackend"`
	Environment    string `toml:"Environment"`
	LogLevel       string `toml:"LogLevel"`
	// LogFile, when set, receives logs instead of stdout and is rotated.
	LogFile      string          `toml:"LogFile"`
	AllowMigrate bool            `toml:"AllowMigrate"`
	Farm         FarmConfig      `toml:"farm"`
	Whitelist    WhitelistConfig `toml:"whitelist"`
	Admin        AdminConfig     `toml:"admin"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
	HTTP         HTTPConfig      `toml:"http"`
	Archive      ArchiveConfig   `toml:"archive"`
	Telemetry    TelemetryConfig `toml:"telemetry"`
}

// FarmConfig describes the staking pool served by the daemon.
type FarmConfig struct {
	PoolID string `toml:"PoolID"`
	// PoolAddress is the account holding staked units. When empty an
	// address is derived from PoolID.
	PoolAddress string `toml:"PoolAddress"`
	// RewardRatePerSecond is a decimal integer in reward base units.
	RewardRatePerSecond string `toml:"RewardRatePerSecond"`
	StakeToken          string `toml:"StakeToken"`
	RewardToken         string `toml:"RewardToken"`
	Decimals            uint8  `toml:"Decimals"`
}

// WhitelistConfig seeds the allocation registry on first start.
type WhitelistConfig struct {
	Owner string `toml:"Owner"`
	Root  string `toml:"Root"`
}

// AdminConfig secures the admin routes. A static bearer token, an HMAC JWT
// secret, or both may be configured.
type AdminConfig struct {
	BearerToken     string `toml:"BearerToken"`
	BearerTokenFile string `toml:"BearerTokenFile"`
	JWTSecret       string `toml:"JWTSecret"`
	JWTIssuer       string `toml:"JWTIssuer"`
	JWTAudience     string `toml:"JWTAudience"`
}

// ArchiveConfig enables the SQL event archive. DSN is a SQLite path or a
// postgres:// URL; empty disables archiving.
type ArchiveConfig struct {
	DSN string `toml:"DSN"`
}

// TelemetryConfig wires OTLP exporters. Empty Endpoint disables export.
type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	// Headers uses the OTEL_EXPORTER_OTLP_HEADERS form: key=value,key2=value2.
	Headers string `toml:"Headers"`
	Traces  bool   `toml:"Traces"`
	Metrics bool   `toml:"Metrics"`
}

// RateLimitConfig throttles requests per client address.
type RateLimitConfig struct {
	RequestsPerMinute uint32 `toml:"RequestsPerMinute"`
	Burst             int    `toml:"Burst"`
}

// HTTPConfig holds server timeouts in seconds.
type HTTPConfig struct {
	ReadTimeoutSecs     uint32 `toml:"ReadTimeoutSecs"`
	WriteTimeoutSecs    uint32 `toml:"WriteTimeoutSecs"`
	IdleTimeoutSecs     uint32 `toml:"IdleTimeoutSecs"`
	ShutdownTimeoutSecs uint32 `toml:"ShutdownTimeoutSecs"`
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	cfg := &Config{
		ListenAddress:  ":8545",
		DataDir:        "./farm-data",
		StorageBackend: "leveldb",
		Environment:    "dev",
		LogLevel:       "info",
		Farm: FarmConfig{
			PoolID:              "default",
			RewardRatePerSecond: "1000000000000000000",
			StakeToken:          "STK",
			RewardToken:         "RWD",
			Decimals:            18,
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 600, Burst: 60},
	}
	cfg.applyDefaults()
	return cfg
}

// Load loads the configuration from the given path, creating a default file
// when none exists. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("config file %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Farm.PoolID) == "" {
		c.Farm.PoolID = "default"
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
	}
	if strings.TrimSpace(c.StorageBackend) == "" {
		c.StorageBackend = "leveldb"
	}
	if c.Farm.Decimals == 0 {
		c.Farm.Decimals = 18
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 1
	}
	if c.HTTP.ReadTimeoutSecs == 0 {
		c.HTTP.ReadTimeoutSecs = 15
	}
	if c.HTTP.WriteTimeoutSecs == 0 {
		c.HTTP.WriteTimeoutSecs = 30
	}
	if c.HTTP.IdleTimeoutSecs == 0 {
		c.HTTP.IdleTimeoutSecs = 60
	}
	if c.HTTP.ShutdownTimeoutSecs == 0 {
		c.HTTP.ShutdownTimeoutSecs = 10
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// RewardRate parses the configured emission rate.
func (f FarmConfig) RewardRate() (*big.Int, error) {
	trimmed := strings.TrimSpace(f.RewardRatePerSecond)
	if trimmed == "" {
		return nil, fmt.Errorf("farm.RewardRatePerSecond is required")
	}
	rate, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("farm.RewardRatePerSecond %q is not a decimal integer", trimmed)
	}
	if rate.Sign() <= 0 {
		return nil, fmt.Errorf("farm.RewardRatePerSecond must be positive")
	}
	return rate, nil
}

// Custody returns the pool account, deriving one from PoolID when no
// address is configured.
func (f FarmConfig) Custody() (crypto.Address, error) {
	trimmed := strings.TrimSpace(f.PoolAddress)
	if trimmed == "" {
		digest := ethcrypto.Keccak256([]byte("farm/custody/" + strings.TrimSpace(f.PoolID)))
		return crypto.NewAddress(crypto.PoolPrefix, digest[len(digest)-crypto.AddressLength:]), nil
	}
	addr, err := crypto.ParseAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("farm.PoolAddress: %w", err)
	}
	return addr, nil
}

// OwnerAddress parses the whitelist owner. The boolean is false when no
// owner is configured.
func (w WhitelistConfig) OwnerAddress() (crypto.Address, bool, error) {
	trimmed := strings.TrimSpace(w.Owner)
	if trimmed == "" {
		return crypto.Address{}, false, nil
	}
	addr, err := crypto.ParseAddress(trimmed)
	if err != nil {
		return crypto.Address{}, false, fmt.Errorf("whitelist.Owner: %w", err)
	}
	return addr, true, nil
}

// RootHash parses the initial allocation root. An empty value yields the
// zero hash.
func (w WhitelistConfig) RootHash() (common.Hash, error) {
	trimmed := strings.TrimSpace(w.Root)
	if trimmed == "" {
		return common.Hash{}, nil
	}
	raw := strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	if len(raw) != 2*common.HashLength {
		return common.Hash{}, fmt.Errorf("whitelist.Root must be 32 bytes of hex")
	}
	decoded := common.FromHex(raw)
	if len(decoded) != common.HashLength {
		return common.Hash{}, fmt.Errorf("whitelist.Root is not valid hex")
	}
	return common.BytesToHash(decoded), nil
}

// Token resolves the admin bearer token from the inline value or the token
// file.
func (a AdminConfig) Token() (string, error) {
	if token := strings.TrimSpace(a.BearerToken); token != "" {
		return token, nil
	}
	path := strings.TrimSpace(a.BearerTokenFile)
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read admin bearer token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
