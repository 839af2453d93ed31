package farmd

import (
	"fmt"
	"log/slog"
	"strings"

	"stakefarm/config"
	"stakefarm/core/events"
	"stakefarm/core/state"
	"stakefarm/native/farm"
	"stakefarm/native/token"
	"stakefarm/native/whitelist"
	"stakefarm/storage"
	"stakefarm/storage/archive"
)

const eventBufferSize = 1024

// App holds the wired components behind the HTTP server.
type App struct {
	State    *state.Manager
	Engine   *farm.Engine
	Stake    *token.Ledger
	Reward   *token.Ledger
	Registry *whitelist.Registry
	Events   *events.Buffer
	Archive  *archive.Archive
	Server   *Server
}

// Close releases resources opened by Build. The database passed to Build is
// owned by the caller.
func (a *App) Close() error {
	if a == nil || a.Archive == nil {
		return nil
	}
	return a.Archive.Close()
}

// Build wires the state manager, ledgers, registry and engine on top of db.
// A nil clock selects the system clock.
func Build(cfg *config.Config, db storage.Database, clock farm.Clock, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("farmd: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	rate, err := cfg.Farm.RewardRate()
	if err != nil {
		return nil, err
	}
	custody, err := cfg.Farm.Custody()
	if err != nil {
		return nil, err
	}
	adminToken, err := cfg.Admin.Token()
	if err != nil {
		return nil, err
	}

	var eventArchive *archive.Archive
	if dsn := strings.TrimSpace(cfg.Archive.DSN); dsn != "" {
		if eventArchive, err = archive.Open(dsn, logger); err != nil {
			return nil, err
		}
	}

	mgr := state.NewManager(db)
	if err := state.EnsureStateVersion(mgr, cfg.AllowMigrate); err != nil {
		return nil, err
	}

	buffer := events.NewBuffer(eventBufferSize)
	published := events.Fanout{buffer, eventSink{logger: logger}}
	if eventArchive != nil {
		published = append(published, eventArchive)
	}
	staged := events.NewStaged(published)
	mgr.SetCommitListener(staged)

	stake := token.NewLedger(cfg.Farm.StakeToken)
	stake.SetState(mgr)
	stake.SetEmitter(staged)
	reward := token.NewLedger(cfg.Farm.RewardToken)
	reward.SetState(mgr)
	reward.SetEmitter(staged)

	registry := whitelist.NewRegistry()
	registry.SetState(mgr)
	registry.SetEmitter(staged)

	err = mgr.Atomic(func() error {
		for _, symbol := range []string{stake.Symbol(), reward.Symbol()} {
			if mgr.TokenExists(symbol) {
				continue
			}
			if err := mgr.RegisterToken(symbol, symbol, cfg.Farm.Decimals); err != nil {
				return fmt.Errorf("register token %s: %w", symbol, err)
			}
		}
		owner, ok, err := cfg.Whitelist.OwnerAddress()
		if err != nil || !ok {
			return err
		}
		root, err := cfg.Whitelist.RootHash()
		if err != nil {
			return err
		}
		written, err := registry.Initialize(owner, root)
		if err != nil {
			return err
		}
		if written {
			logger.Info("whitelist initialised", slog.String("owner", owner.String()), slog.String("root", root.Hex()))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	engine := farm.NewEngine(rate)
	engine.SetPoolID(cfg.Farm.PoolID)
	engine.SetState(mgr)
	engine.SetStakeLedger(token.NewCustody(stake, custody))
	engine.SetRewardLedger(token.NewMinter(reward))
	engine.SetEmitter(staged)
	if clock != nil {
		engine.SetClock(clock)
	}

	var auth *Authenticator
	if adminToken != "" || strings.TrimSpace(cfg.Admin.JWTSecret) != "" {
		auth, err = NewAuthenticator(AuthConfig{
			BearerToken: adminToken,
			JWTSecret:   cfg.Admin.JWTSecret,
			Issuer:      cfg.Admin.JWTIssuer,
			Audience:    cfg.Admin.JWTAudience,
		})
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("admin credentials not configured; admin routes disabled")
	}

	srv := New(Config{
		Engine:   engine,
		State:    mgr,
		Ledgers:  []*token.Ledger{stake, reward},
		Custody:  custody,
		Registry: registry,
		Events:   buffer,
		Archive:  eventArchive,
		Auth:     auth,
		RateLimit: RateLimit{
			RequestsPerMinute: float64(cfg.RateLimit.RequestsPerMinute),
			Burst:             cfg.RateLimit.Burst,
		},
		Logger: logger,
	})
	return &App{
		State:    mgr,
		Engine:   engine,
		Stake:    stake,
		Reward:   reward,
		Registry: registry,
		Events:   buffer,
		Archive:  eventArchive,
		Server:   srv,
	}, nil
}
