package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/config"
	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/repository"
	"telegram-digital-store/internal/infra/db/postgres"
	"telegram-digital-store/internal/infra/redis"
)

// This script is for setting up a clean, predictable database state
// for manual end-to-end testing.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()
	ctx := context.Background()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	// --- Connect to Postgres ---
	if err := postgres.MigrateUp(cfg.Database.URL); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	// --- Connect to Redis ---
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer redisClient.Close()

	log.Println("--- Starting E2E Environment Setup ---")

	// 1. Clean the Redis cache to remove any stale data.
	log.Println("[1/4] Wiping Redis cache...")
	if err := redisClient.FlushDB(ctx); err != nil {
		log.Fatalf("failed to flush redis: %v", err)
	}

	// 2. Clean the database completely.
	log.Println("[2/4] Wiping all existing database data...")
	_, err = pool.Exec(ctx, `
		TRUNCATE
			clicks, admin_notifications, payments, orders, users, products
		RESTART IDENTITY CASCADE;
	`)
	if err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	// 3. Seed the catalog.
	log.Println("[3/4] Seeding products...")
	course := seedProducts(ctx, pool)

	// 4. An installment order whose first slice is paid and whose due date
	// has passed, so the next overdue sweep reports it.
	log.Println("[4/4] Seeding an overdue installment order...")
	seedOverdueOrder(ctx, pool, course)

	log.Println("--- ✅ E2E Environment Setup Complete ---")
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) *model.Product {
	repo := postgres.NewProductRepo(pool)

	ip := decimal.RequireFromString("1200.00")
	months := 3
	course, err := model.NewProduct("", "Go Backend Course", model.ProductTypeCourse, decimal.RequireFromString("1000.00"), &ip, &months)
	if err != nil {
		log.Fatalf("build course: %v", err)
	}
	if err := repo.Save(ctx, repository.NoTX, course); err != nil {
		log.Fatalf("failed to save course: %v", err)
	}

	bot, err := model.NewProduct("", "Sales Bot Template", model.ProductTypeBot, decimal.RequireFromString("250.00"), nil, nil)
	if err != nil {
		log.Fatalf("build bot: %v", err)
	}
	if err := repo.Save(ctx, repository.NoTX, bot); err != nil {
		log.Printf("failed to save bot product: %v", err)
	}
	return course
}

func seedOverdueOrder(ctx context.Context, pool *pgxpool.Pool, course *model.Product) {
	users := postgres.NewUserRepo(pool)
	orders := postgres.NewOrderRepo(pool)
	payments := postgres.NewPaymentRepo(pool)

	u, err := model.NewUser("", 100001, "e2e_customer", "E2E", "Customer")
	if err != nil {
		log.Fatalf("build user: %v", err)
	}
	if err := users.Save(ctx, repository.NoTX, u); err != nil {
		log.Fatalf("failed to save user: %v", err)
	}

	created := time.Now().Add(-45 * 24 * time.Hour)
	o, err := model.NewOrder(u.ID, course, model.PaymentTypeInstallment, nil, created, model.DefaultInstallmentDueOffset)
	if err != nil {
		log.Fatalf("build order: %v", err)
	}
	first, number, err := o.NextSlice(0)
	if err != nil {
		log.Fatalf("first slice: %v", err)
	}
	o.PaidAmount = first
	o.Status = model.OrderStatusPaid
	if err := orders.Save(ctx, repository.NoTX, o); err != nil {
		log.Fatalf("failed to save order: %v", err)
	}

	p, err := model.NewPayment(o.ID, "noop", "e2e-"+o.ID, first, "RUB", number)
	if err != nil {
		log.Fatalf("build payment: %v", err)
	}
	p.Status = model.PaymentStatusSucceeded
	if err := payments.Save(ctx, repository.NoTX, p); err != nil {
		log.Fatalf("failed to save payment: %v", err)
	}
	log.Printf("overdue order %s (paid %s of %s, due %s)", o.ID, o.PaidAmount.StringFixed(2),
		o.TotalAmount.StringFixed(2), o.NextPaymentDate.Format(time.RFC3339))
}
