package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegram-digital-store/internal/config"
	"telegram-digital-store/internal/domain/model"
	pg "telegram-digital-store/internal/infra/db/postgres"
	"telegram-digital-store/internal/usecase"
)

func main() {
	// ---- Config ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := pg.MigrateUp(cfg.Database.URL); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	nop := zerolog.Nop()
	productUC := usecase.NewProductUseCase(pg.NewProductRepo(pool), &nop)

	// If products already exist, do nothing
	products, err := productUC.ListAll(ctx)
	if err != nil {
		log.Fatalf("list products: %v", err)
	}
	if len(products) > 0 {
		fmt.Printf("%d products already present. No changes.\n", len(products))
		for _, p := range products {
			fmt.Printf("  - %s (%s, price=%s, active=%t)\n", p.Name, p.Type, p.Price.StringFixed(2), p.Active)
		}
		return
	}

	// Sample catalog covering full and installment purchases
	seed := []usecase.ProductInput{
		{
			Name:              "Go Backend Course",
			Description:       "Twelve weeks of services, storage and concurrency in Go.",
			Type:              model.ProductTypeCourse,
			Price:             decimal.RequireFromString("1000.00"),
			InstallmentPrice:  decPtr("1200.00"),
			InstallmentMonths: intPtr(3),
			Features:          []string{"24 video lessons", "code reviews", "certificate"},
		},
		{
			Name:        "Weekend Intensive",
			Description: "Two days of hands-on practice.",
			Type:        model.ProductTypeIntensive,
			Price:       decimal.RequireFromString("350.00"),
			Features:    []string{"live sessions", "recordings"},
		},
		{
			Name:              "Community Membership",
			Description:       "Private chat, monthly Q&A calls.",
			Type:              model.ProductTypeCommunity,
			Price:             decimal.RequireFromString("600.00"),
			InstallmentPrice:  decPtr("660.00"),
			InstallmentMonths: intPtr(6),
		},
	}

	for _, in := range seed {
		p, err := productUC.Create(ctx, in)
		if err != nil {
			log.Fatalf("create product %q: %v", in.Name, err)
		}
		fmt.Printf("seeded: %s (id=%s, price=%s)\n", p.Name, p.ID, p.Price.StringFixed(2))
	}

	fmt.Println("✅ Seeding complete.")
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(i int) *int { return &i }
