package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/taskq/internal/config"
	"github.com/xraph/taskq/store"
	"github.com/xraph/taskq/store/memory"
	redisstore "github.com/xraph/taskq/store/redis"
)

var envLookup = os.LookupEnv

// openStore builds the configured Work Store. The returned close function
// releases the store and its connection.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func() error, error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Store.RedisAddr, err)
		}

		opts := []redisstore.Option{
			redisstore.WithLogger(logger),
			redisstore.WithQueue(cfg.Engine.Queue),
			redisstore.WithAttemptRetention(cfg.Store.AttemptRetention),
		}
		if !cfg.Store.AttemptLog {
			opts = append(opts, redisstore.WithoutAttemptLog())
		}
		s := redisstore.New(rdb, opts...)
		return s, func() error {
			_ = s.Close()
			return rdb.Close()
		}, nil

	default:
		opts := []memory.Option{
			memory.WithQueue(cfg.Engine.Queue),
			memory.WithAttemptRetention(cfg.Store.AttemptRetention),
		}
		if !cfg.Store.AttemptLog {
			opts = append(opts, memory.WithoutAttemptLog())
		}
		s := memory.New(opts...)
		return s, s.Close, nil
	}
}
