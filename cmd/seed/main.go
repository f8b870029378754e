package main

import (
	"context"
	"log"
	"os"

	"tienda-orders/internal/config"
	"tienda-orders/internal/db"
	productrepo "tienda-orders/internal/repository/product"
	userrepo "tienda-orders/internal/repository/user"
	"tienda-orders/internal/seed"
	usersvc "tienda-orders/internal/service/user"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, cfg.DBMaxConns)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	users := usersvc.New(userrepo.NewPostgres(pool, logger))
	if err := seed.Apply(ctx, users, productrepo.NewPostgres(pool, logger)); err != nil {
		logger.Fatalf("seed apply: %v", err)
	}

	logger.Println("seed applied")
}
