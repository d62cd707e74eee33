package app

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/casa-rifa/raffle-api/internal/api"
	"github.com/casa-rifa/raffle-api/internal/config"
	"github.com/casa-rifa/raffle-api/internal/db"
	"github.com/casa-rifa/raffle-api/internal/logger"
	"github.com/casa-rifa/raffle-api/internal/repository/dao"
)

func Start() error {
	conf, err := config.Load("./cmd/app/config.yml")
	if err != nil {
		return fmt.Errorf("config.Load -> %w", err)
	}

	if err = logger.Init(conf.API.Environment); err != nil {
		return fmt.Errorf("logger.Init -> %w", err)
	}

	gormDB, err := openDB(conf)
	if err != nil {
		return err
	}

	if err = dao.InitTables(gormDB); err != nil {
		return fmt.Errorf("dao.InitTables -> %w", err)
	}

	ctx := context.Background()
	if err = seed(ctx, gormDB, conf.Raffle); err != nil {
		return err
	}

	server := api.NewServer(conf, gormDB)

	go server.Payments.RunHoldSweeper(ctx)
	go server.Raffle.RunSelectionJanitor(ctx)

	zap.L().Info("starting server", zap.String("port", conf.API.Port))

	if err = server.Router.Run(":" + conf.API.Port); err != nil {
		return fmt.Errorf("server.Router.Run -> %w", err)
	}

	return nil
}

func openDB(conf *config.AppConfig) (*gorm.DB, error) {
	// Managed platforms hand out a single connection URL.
	if url := os.Getenv("DATABASE_URL"); url != "" {
		gormDB, err := db.OpenPostgresWithURL(url)
		if err != nil {
			return nil, fmt.Errorf("db.OpenPostgresWithURL -> %w", err)
		}

		return gormDB, nil
	}

	gormDB, err := db.OpenPostgres(conf.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db.OpenPostgres -> %w", err)
	}

	return gormDB, nil
}

func seed(ctx context.Context, gormDB *gorm.DB, conf *config.RaffleConfig) error {
	if err := dao.SeedTickets(ctx, gormDB, conf.MaxTickets); err != nil {
		return fmt.Errorf("dao.SeedTickets -> %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(conf.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("bcrypt.GenerateFromPassword -> %w", err)
	}

	admin := dao.User{
		Name:     conf.AdminName,
		Email:    conf.AdminEmail,
		Phone:    conf.AdminPhone,
		Password: string(hashed),
		IsAdmin:  true,
	}
	if err = dao.SeedAdmin(ctx, gormDB, admin); err != nil {
		return fmt.Errorf("dao.SeedAdmin -> %w", err)
	}

	return nil
}
