package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/pcristin/stockguard/internal/api"
	"github.com/pcristin/stockguard/internal/config"
	"github.com/pcristin/stockguard/internal/guard"
	"github.com/pcristin/stockguard/internal/lock"
	myLogger "github.com/pcristin/stockguard/internal/logger"
	"github.com/pcristin/stockguard/internal/product"
	"github.com/pcristin/stockguard/internal/purchase"
	"github.com/pcristin/stockguard/internal/quorum"
	"github.com/pcristin/stockguard/internal/registry"
	"github.com/pcristin/stockguard/internal/stock"
)

// newRedisPool builds a connection pool for a single Redis endpoint.
func newRedisPool(address string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:         1000,
		MaxActive:       2000,
		IdleTimeout:     240 * time.Second,
		Wait:            true,
		MaxConnLifetime: 10 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", address,
				redis.DialConnectTimeout(5*time.Second),
				redis.DialReadTimeout(3*time.Second),
				redis.DialWriteTimeout(3*time.Second),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.New()
	cfg.ParseFlags()

	logger := myLogger.Setup(cfg.LogLevel)
	logger.Info("config | config initialized", "port", cfg.Port, "quorum_mode", cfg.QuorumMode())

	var stockGuard guard.StockGuard
	var seeder guard.Seeder
	var closeRedis func() error

	if cfg.QuorumMode() {
		nodes := cfg.RedisNodeList()
		pools := make([]*redis.Pool, len(nodes))
		for i, addr := range nodes {
			pools[i] = newRedisPool(addr)
		}
		qlock := quorum.New(pools, cfg.ClockDriftBudget)
		q := guard.NewQuorum(qlock, cfg.LockTimeout())
		stockGuard = q
		seeder = q
		closeRedis = func() error {
			for _, p := range pools {
				p.Close() //nolint:errcheck
			}
			return nil
		}
		logger.Info("redis | quorum mode", "nodes", len(pools))
	} else {
		pool := newRedisPool(cfg.RedisURL)
		conn := pool.Get()
		if _, err := conn.Do("PING"); err != nil {
			conn.Close() //nolint:errcheck
			logger.Error("redis | failed to connect", "error", err)
			os.Exit(1)
		}
		conn.Close() //nolint:errcheck

		store := stock.NewRedis(pool)
		locker := lock.NewRedis(pool)
		sn := guard.NewSingleNode(store, locker, cfg.LockTimeout(), cfg.LockRetryAttempts, cfg.LockRetryDelay())
		stockGuard = sn
		seeder = sn
		closeRedis = pool.Close
		logger.Info("redis | single-endpoint mode", "address", cfg.RedisURL)
	}
	defer closeRedis() //nolint:errcheck

	reg, err := registry.Open(ctx, cfg.DatabaseURL, cfg.DBPoolSize, cfg.DBPoolOverflow, cfg.DBPoolTimeout)
	if err != nil {
		logger.Error("postgres | failed to connect", "error", err)
		os.Exit(1)
	}
	defer reg.Close() //nolint:errcheck

	if err := reg.HealthCheck(ctx); err != nil {
		logger.Error("postgres | health check failed", "error", err)
		os.Exit(1)
	}

	if err := reg.CreateSchema(ctx); err != nil {
		logger.Error("postgres | failed to create schema", "error", err)
		os.Exit(1)
	}

	purchaseOrch := purchase.New(reg, stockGuard)

	nameLocker, ok := stockGuard.(interface {
		NameLocker() lock.Locker
	})
	if !ok {
		logger.Error("product orchestrator | stock guard does not expose a name locker")
		os.Exit(1)
	}
	productOrch := product.New(reg, nameLocker.NameLocker(), seeder, cfg.LockTimeout())

	handler := api.NewHandler(cfg, reg, purchaseOrch, productOrch, stockGuard.Read, seeder.Seed)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	idleConnsClosed := make(chan struct{})
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigint
		logger.Info("server | shutting down")

		shutdownComplete := make(chan struct{})
		go func() {
			cancel()
			if err := server.Shutdown(context.Background()); err != nil {
				logger.Error("server error | could not shutdown server", "error", err)
			}
			logger.Info("server | HTTP server shutdown completed")
			close(shutdownComplete)
		}()

		select {
		case <-shutdownComplete:
			logger.Info("server | graceful shutdown completed")
		case <-time.After(30 * time.Second):
			logger.Warn("server | graceful shutdown timed out (30 seconds)")
			logger.Warn("server | WARNING: some operations may not have completed cleanly")
		}

		close(idleConnsClosed)
	}()

	go func() {
		logger.Info("server | running", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error | could not listen on port", "port", cfg.Port, "error", err)
			sigint <- syscall.SIGTERM
		}
	}()

	<-idleConnsClosed
	logger.Info("server | server stopped")
}
