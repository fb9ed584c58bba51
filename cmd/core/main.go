package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"gorm.io/gorm"

	grpc_adapter "github.com/JoeShih716/go-fin-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-fin-ledger/internal/app/core/adapter/out/gormstore"
	redis_adapter "github.com/JoeShih716/go-fin-ledger/internal/app/core/adapter/out/redis"
	"github.com/JoeShih716/go-fin-ledger/internal/app/core/adapter/out/xlsx"
	"github.com/JoeShih716/go-fin-ledger/internal/app/core/config"
	"github.com/JoeShih716/go-fin-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-fin-ledger/pkg/mysql"
	"github.com/JoeShih716/go-fin-ledger/pkg/postgres"
	"github.com/JoeShih716/go-fin-ledger/pkg/wal"
)

func main() {
	// 1. 載入設定
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	// 2. 初始化資料庫 (MySQL 或 PostgreSQL)
	db, closeDB, err := openDatabase(cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer closeDB()
	logger.Info("connected to database", "driver", cfg.Database.Driver)

	store := gormstore.NewStore(db, gormstore.WithLogger(logger))
	if *cfg.Database.AutoMigrate {
		if err := store.AutoMigrate(context.Background()); err != nil {
			logger.Error("failed to migrate schema", "error", err)
			os.Exit(1)
		}
	}

	// 3. 選用元件：摘要快取、操作日誌
	opts := []usecase.Option{
		usecase.WithLogger(logger),
		usecase.WithStatementWriter(xlsx.NewStatementWriter()),
	}
	if cfg.Redis.Enabled() {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			// 快取只是加速，連不上時照常服務
			logger.Warn("redis unavailable, summary cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			opts = append(opts, usecase.WithSummaryCache(redis_adapter.NewSummaryCache(rdb, cfg.Redis.TTL)))
			logger.Info("summary cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
		}
	}
	if cfg.WAL.Path != "" {
		journal, err := wal.NewWAL(cfg.WAL.Path)
		if err != nil {
			logger.Error("failed to open journal", "path", cfg.WAL.Path, "error", err)
			os.Exit(1)
		}
		defer journal.Close()
		opts = append(opts, usecase.WithJournal(journal))
		logger.Info("journal enabled", "path", cfg.WAL.Path)
	}

	// 4. 初始化 UseCase
	coreUseCase := usecase.NewCoreUseCase(store, store, opts...)

	// 5. 初始化 gRPC Adapter (Driving Adapter)
	grpcServer := grpc_adapter.NewGrpcServer(coreUseCase, logger)

	// 6. 啟動 gRPC Server
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.GRPC.Addr, "error", err)
		os.Exit(1)
	}

	s := grpc.NewServer(grpc.UnaryInterceptor(grpc_adapter.LoggingInterceptor(logger)))
	grpc_adapter.RegisterLedgerServiceServer(s, grpcServer)

	go func() {
		logger.Info("starting gRPC server", "addr", cfg.GRPC.Addr)
		if err := s.Serve(lis); err != nil {
			logger.Error("grpc server stopped", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	s.GracefulStop()
	logger.Info("server exited")
}

// openDatabase 依設定的 driver 建立 gorm 連線
func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		client, err := postgres.NewClient(cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return client.DB(), func() { _ = client.Close() }, nil
	default:
		client, err := mysql.NewClient(cfg.MySQL)
		if err != nil {
			return nil, nil, err
		}
		return client.DB(), func() { _ = client.Close() }, nil
	}
}
