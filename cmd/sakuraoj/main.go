package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sakura-oj/sakuraoj/internal/api"
	"github.com/sakura-oj/sakuraoj/internal/cache"
	"github.com/sakura-oj/sakuraoj/internal/config"
	"github.com/sakura-oj/sakuraoj/internal/database"
	"github.com/sakura-oj/sakuraoj/internal/judge"
	"github.com/sakura-oj/sakuraoj/internal/pubsub"
	"github.com/sakura-oj/sakuraoj/internal/stats"
	"github.com/sakura-oj/sakuraoj/internal/submission"

	"go.uber.org/zap"
)

var Version = "dev-build"

func main() {
	fmt.Fprintf(os.Stderr, "sakuraoj %s - contest judge platform API\n\n", Version)

	// config
	var configPath string
	flag.StringVar(&configPath, "c", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// logger
	var logger *zap.Logger
	if cfg.Logger.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// database
	db, err := database.Init(cfg.Storage.Database)
	if err != nil {
		zap.S().Fatalf("failed to initialize database: %v", err)
	}
	zap.S().Info("database initialized successfully")

	// result cache: redis when configured, in-process otherwise
	var resultCache cache.Cache
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			zap.S().Fatalf("failed to connect to redis: %v", err)
		}
		defer redisCache.Close()
		resultCache = redisCache
		zap.S().Infof("using redis cache at %s", cfg.Redis.Addr)
	} else {
		resultCache = cache.NewMemory()
		zap.S().Info("redis not configured, using in-process cache")
	}

	index := stats.NewIndex(
		db,
		resultCache,
		time.Duration(cfg.Cache.CompletionTTLHours)*time.Hour,
		time.Duration(cfg.Cache.HotProblemsTTLMinutes)*time.Minute,
	)

	// judge bridge
	bridge := judge.NewBridge(cfg.Judge, db)
	if err := judge.RequeuePending(db, bridge); err != nil {
		zap.S().Fatalf("failed to requeue pending submissions: %v", err)
	}
	go bridge.Run()
	zap.S().Info("judge bridge started")

	admitter := submission.NewAdmitter(db, bridge, cfg.SubmissionLimit)
	broker := pubsub.NewBroker()

	// API router
	engine := api.NewRouter(cfg, db, index, admitter, broker)

	go func() {
		zap.S().Infof("starting server at %s", cfg.Listen)
		if err := engine.Run(cfg.Listen); err != nil {
			zap.S().Fatalf("failed to start server: %v", err)
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.S().Info("shutting down server...")
}
