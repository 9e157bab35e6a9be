package main

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"lelong/api"
)

func ParseArgs() Args {
	// server config
	pflag.String("server-url", "0.0.0.0:8080", "")

	// db config
	pflag.String("db-user", "", "")
	pflag.String("db-password", "", "")
	pflag.String("db-host", "", "")
	pflag.Int("db-port", 5432, "")
	pflag.String("db-database", "", "")
	pflag.String("db-schema", "", "")

	// redis config
	pflag.String("redis-addr", "", "")
	pflag.String("redis-password", "", "")
	pflag.Int("redis-db", 15, "")

	// redis keys
	pflag.String("redis-stream-key-for-corrections", "lelong-correction-stream", "")
	pflag.String("redis-sweep-lock-key", "lelong-sweep-lock", "")

	// sweep config
	pflag.Int("sweep-workers", 4, "")
	pflag.Duration("sweep-interval", 0, "")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("LELONG")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// initial arguments
	return Args{
		ServerURL: viper.GetString("server-url"),
		ServerConfig: api.ServerConfig{
			DB: api.DBConfig{
				User:     viper.GetString("db-user"),
				Password: viper.GetString("db-password"),
				Host:     viper.GetString("db-host"),
				Port:     viper.GetInt("db-port"),
				Database: viper.GetString("db-database"),
				Schema:   viper.GetString("db-schema"),
			},
			Redis: api.RedisConfig{
				Addr:     viper.GetString("redis-addr"),
				Password: viper.GetString("redis-password"),
				DB:       viper.GetInt("redis-db"),
				LockKey:  viper.GetString("redis-sweep-lock-key"),
				StreamKeys: api.RedisStreamKeys{
					Corrections: viper.GetString("redis-stream-key-for-corrections"),
				},
			},
			Sweep: api.SweepConfig{
				Workers:  viper.GetInt("sweep-workers"),
				Interval: viper.GetDuration("sweep-interval"),
			},
		},
	}
}

type Args struct {
	ServerURL    string
	ServerConfig api.ServerConfig
}

func (args Args) Validate() bool {
	if args.ServerURL == "" {
		return false
	}
	db := args.ServerConfig.DB
	if db.User == "" || db.Host == "" || db.Database == "" {
		return false
	}
	redis := args.ServerConfig.Redis
	if redis.Addr == "" || redis.LockKey == "" || redis.StreamKeys.Corrections == "" {
		return false
	}
	sweep := args.ServerConfig.Sweep
	// 內建排程間隔為 0（停用）或至少一分鐘，避免把秒誤設成毫秒
	return sweep.Workers > 0 && (sweep.Interval == 0 || sweep.Interval >= time.Minute)
}
