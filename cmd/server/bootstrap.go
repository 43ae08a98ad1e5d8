package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dencamenew/vsuet-attendance/internal/api"
	"github.com/dencamenew/vsuet-attendance/internal/app"
	"github.com/dencamenew/vsuet-attendance/internal/attendance"
	"github.com/dencamenew/vsuet-attendance/internal/database"
	"github.com/dencamenew/vsuet-attendance/internal/display"
	"github.com/dencamenew/vsuet-attendance/internal/roster"
	"github.com/dencamenew/vsuet-attendance/internal/rotation"
	"github.com/dencamenew/vsuet-attendance/internal/store"
	"github.com/dencamenew/vsuet-attendance/pkg/logger"
)

// buildDependencies wires the full component stack: Redis session store,
// roster database, scan service, token rotator and display gateway. The
// returned cleanup stops the rotator and closes backend connections in
// reverse order of construction.
func buildDependencies(ctx context.Context, cfg *app.Config, log *zap.Logger) (*api.Deps, func(), error) {
	redisClient, err := store.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("redis connected", zap.String("addr", cfg.Redis.Address))

	db, err := initialiseDatabase(cfg)
	if err != nil {
		_ = redisClient.Close()
		return nil, nil, err
	}

	sessionStore := store.NewRedisStore(redisClient)

	resolver, err := roster.NewDBResolver(db)
	if err != nil {
		_ = redisClient.Close()
		closeDatabase(db, log)
		return nil, nil, fmt.Errorf("initialise roster resolver: %w", err)
	}

	service, err := attendance.NewService(sessionStore, resolver, cfg.Attendance.TokenBytes)
	if err != nil {
		_ = redisClient.Close()
		closeDatabase(db, log)
		return nil, nil, fmt.Errorf("initialise attendance service: %w", err)
	}

	rotator := rotation.NewRotator(sessionStore, cfg.Attendance.RotationInterval, cfg.Attendance.TokenBytes)
	if err := rotator.Start(); err != nil {
		_ = redisClient.Close()
		closeDatabase(db, log)
		return nil, nil, fmt.Errorf("start token rotator: %w", err)
	}
	log.Info("token rotator started", zap.Duration("interval", cfg.Attendance.RotationInterval))

	cleanup := func() {
		<-rotator.Stop().Done()
		closeDatabase(db, log)
		_ = redisClient.Close()
	}

	deps := &api.Deps{
		Config:  cfg,
		Redis:   redisClient,
		DB:      db,
		Service: service,
		Gateway: display.NewGateway(sessionStore, cfg.Attendance.LivenessPoll),
	}
	return deps, cleanup, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
