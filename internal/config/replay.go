package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Input             string
	Out               string
	PGDSN             string
	BatchSize         int
	StateFile         string
	ReplayFrom        uint64
	PenaltyOffset     uint64
	ProtectZeroForOne bool
	LogLevel          string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("HOOKSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("batch-size", 1000)
	v.SetDefault("out", "./data/hook_outcomes.jsonl")
	v.SetDefault("penalty-offset", uint64(10))
	v.SetDefault("protect-zero-for-one", true)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return ReplayConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return ReplayConfig{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return ReplayConfig{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := ReplayConfig{
		Input:             v.GetString("in"),
		Out:               v.GetString("out"),
		PGDSN:             v.GetString("pg-dsn"),
		BatchSize:         v.GetInt("batch-size"),
		StateFile:         v.GetString("state-file"),
		ReplayFrom:        v.GetUint64("replay-from"),
		PenaltyOffset:     v.GetUint64("penalty-offset"),
		ProtectZeroForOne: v.GetBool("protect-zero-for-one"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}
