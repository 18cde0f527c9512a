// Package config loads the immutable configuration record every wallet-core
// component is constructed with. There is no module-level mutable
// configuration state; a Config is read once, at startup, and handed down
// by the owner (see DESIGN.md's discussion of the top-down owner tree).
package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Config is the immutable set of tunables named throughout the
// specification. All durations/sizes have sensible defaults (see Default)
// so that a caller need only override what it cares about.
type Config struct {
	// MemBudget bounds the approximate byte size of the Synchronizer's
	// staged-block buffer (the sync pipeline's only backpressure lever).
	MemBudget uint64

	// MaxReplySize is the assumed worst-case size of a single fetch
	// reply, reserved against MemBudget before a fetch is allowed to start.
	MaxReplySize uint64

	// FetchBatchSize is the number of blocks requested per fetch.
	FetchBatchSize int

	// BlocksPerTick is how many staged blocks a single drain pass
	// processes.
	BlocksPerTick int

	// GlobalIndexesObscurity is the +/- block range used when backfilling
	// global output indexes.
	GlobalIndexesObscurity uint64

	// TickIdle is how long the sync scheduler sleeps after an empty fetch.
	TickIdle time.Duration

	// SyncTickInterval, NodeRefreshInterval and LockedTxCheckInterval are
	// the three Scheduler task periods.
	SyncTickInterval      time.Duration
	NodeRefreshInterval   time.Duration
	LockedTxCheckInterval time.Duration

	// NodeRPCTimeout bounds every individual Node RPC call.
	NodeRPCTimeout time.Duration

	// MinFee is the coin-specific default transaction fee.
	MinFee uint64

	// MaxFusionInputs, MinFusionInputs, MinInOutRatio and
	// MaxFusionTxSize parameterize the fusion optimizer.
	MaxFusionInputs int
	MinFusionInputs int
	MinInOutRatio   int
	MaxFusionTxSize int

	// RespendTimeout is how many blocks a locked input stays locked before
	// locked_tx_check is willing to consider its parent transaction dead.
	RespendTimeout uint64
}

// Default returns the specification's documented default values.
func Default() Config {
	return Config{
		MemBudget:              50 * 1024 * 1024,
		MaxReplySize:           10 * 1024 * 1024,
		FetchBatchSize:         100,
		BlocksPerTick:          1,
		GlobalIndexesObscurity: 10,
		TickIdle:               time.Second,
		SyncTickInterval:       100 * time.Millisecond,
		NodeRefreshInterval:    10 * time.Second,
		LockedTxCheckInterval:  30 * time.Second,
		NodeRPCTimeout:         10 * time.Second,
		MinFee:                 10,
		MaxFusionInputs:        12,
		MinFusionInputs:        12,
		MinInOutRatio:          4,
		MaxFusionTxSize:        16 * 1024,
		RespendTimeout:         40,
	}
}

// Load reads overrides from the given config file (if non-empty) and from
// environment variables prefixed WALLETCORE_, layered on top of Default.
// A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("WALLETCORE")
	v.AutomaticEnv()
	bind(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, err
			}
		}
	}

	cfg.MemBudget = v.GetUint64("membudget")
	cfg.MaxReplySize = v.GetUint64("maxreplysize")
	cfg.FetchBatchSize = v.GetInt("fetchbatchsize")
	cfg.BlocksPerTick = v.GetInt("blockspertick")
	cfg.GlobalIndexesObscurity = v.GetUint64("globalindexesobscurity")
	cfg.TickIdle = v.GetDuration("tickidle")
	cfg.SyncTickInterval = v.GetDuration("synctickinterval")
	cfg.NodeRefreshInterval = v.GetDuration("noderefreshinterval")
	cfg.LockedTxCheckInterval = v.GetDuration("lockedtxcheckinterval")
	cfg.NodeRPCTimeout = v.GetDuration("noderpctimeout")
	cfg.MinFee = v.GetUint64("minfee")
	cfg.MaxFusionInputs = v.GetInt("maxfusioninputs")
	cfg.MinFusionInputs = v.GetInt("minfusioninputs")
	cfg.MinInOutRatio = v.GetInt("mininoutratio")
	cfg.MaxFusionTxSize = v.GetInt("maxfusiontxsize")
	cfg.RespendTimeout = v.GetUint64("respendtimeout")
	return cfg, nil
}

// bind seeds viper's defaults from cfg so that Load's GetX calls fall back
// to Default's values when neither file nor env overrides them.
func bind(v *viper.Viper, cfg Config) {
	v.SetDefault("membudget", cfg.MemBudget)
	v.SetDefault("maxreplysize", cfg.MaxReplySize)
	v.SetDefault("fetchbatchsize", cfg.FetchBatchSize)
	v.SetDefault("blockspertick", cfg.BlocksPerTick)
	v.SetDefault("globalindexesobscurity", cfg.GlobalIndexesObscurity)
	v.SetDefault("tickidle", cfg.TickIdle)
	v.SetDefault("synctickinterval", cfg.SyncTickInterval)
	v.SetDefault("noderefreshinterval", cfg.NodeRefreshInterval)
	v.SetDefault("lockedtxcheckinterval", cfg.LockedTxCheckInterval)
	v.SetDefault("noderpctimeout", cfg.NodeRPCTimeout)
	v.SetDefault("minfee", cfg.MinFee)
	v.SetDefault("maxfusioninputs", cfg.MaxFusionInputs)
	v.SetDefault("minfusioninputs", cfg.MinFusionInputs)
	v.SetDefault("mininoutratio", cfg.MinInOutRatio)
	v.SetDefault("maxfusiontxsize", cfg.MaxFusionTxSize)
	v.SetDefault("respendtimeout", cfg.RespendTimeout)
}
