package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"

	"auction-settlement/internal/config"
	"auction-settlement/internal/domain"
	"auction-settlement/internal/infrastructure/leader"
	"auction-settlement/internal/infrastructure/memory"
	"auction-settlement/internal/infrastructure/mysql"
	"auction-settlement/internal/infrastructure/redis"
	"auction-settlement/internal/services"
	"auction-settlement/pkg/logger"
	"auction-settlement/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithLevel(cfg.Logging.Level)
	log.Info("Starting settlement worker", "instance_id", cfg.Instance.ID)

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize the auction store
	var repo domain.AuctionRepository
	switch cfg.Storage.Backend {
	case "memory":
		repo = memory.NewStore()
		log.Info("Using in-memory auction store")
	default:
		db, err := utils.OpenMySQL(ctx, cfg.MySQL)
		if err != nil {
			log.Error("Failed to connect to MySQL", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		mysqlRepo := mysql.NewRepository(db)
		if err := mysqlRepo.EnsureSchema(ctx); err != nil {
			log.Error("Failed to prepare MySQL schema", "error", err)
			os.Exit(1)
		}
		repo = mysqlRepo
		log.Info("Connected to MySQL")
	}

	// Wire the settlement engine
	eventPublisher := redis.NewEventPublisher(rdb)
	engine := services.NewSettlementEngine(repo, eventPublisher, log)

	// Initialize leader election
	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.TTL)

	// Initialize scheduler
	scheduler := services.NewSettlementScheduler(engine, leaderElection,
		cfg.Instance.ID, cfg.Settlement.Interval, log)

	if err := scheduler.Start(context.Background()); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// Try to become leader
	go func() {
		for {
			became, err := leaderElection.BecomeLeader(context.Background(), cfg.Instance.ID)
			if err != nil {
				log.Error("Failed to attempt leadership", "error", err)
				time.Sleep(5 * time.Second)
				continue
			}
			if became {
				log.Info("Became settlement leader", "instance_id", cfg.Instance.ID)
			}
			time.Sleep(10 * time.Second)
		}
	}()

	// Wait for interrupt signal or a fatal settlement error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-quit:
		log.Info("Shutting down settlement worker...")
	case err := <-scheduler.Fatal():
		log.Error("Settlement worker halted on integrity violation", "error", err)
		exitCode = 1
	}

	// Graceful shutdown
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	if err := leaderElection.ReleaseLeadership(ctx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	log.Info("Settlement worker stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
