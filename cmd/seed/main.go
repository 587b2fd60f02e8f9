// Package main seeds a development database with demo catalogs and stock.
package main

import (
	"context"
	"fmt"
	"os"

	"stockpilot/internal/core/id"
	"stockpilot/internal/core/types"
	"stockpilot/internal/domain/catalogs/carrier"
	"stockpilot/internal/domain/catalogs/product"
	"stockpilot/internal/domain/catalogs/warehouse"
	"stockpilot/internal/domain/inventory"
	"stockpilot/internal/infrastructure/storage/postgres"
	"stockpilot/internal/infrastructure/storage/postgres/catalog_repo"
	"stockpilot/internal/infrastructure/storage/postgres/inventory_repo"
	"stockpilot/pkg/logger"
	"stockpilot/pkg/numerator"
)

func main() {
	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	num := numerator.New(pool.Unwrap())

	productService := product.NewService(catalog_repo.NewProductRepo(txManager), txManager, num)
	warehouseService := warehouse.NewService(catalog_repo.NewWarehouseRepo(txManager), txManager, num)
	carrierService := carrier.NewService(catalog_repo.NewCarrierRepo(txManager), txManager, num)
	ledger := inventory.NewLedger(inventory_repo.NewLedgerRepo(txManager), txManager)

	// --- Warehouses ---
	central := warehouse.NewWarehouse("WH-CENTRAL", "Central Distribution Center", warehouse.TypeDistribution)
	central.Priority = 1
	north := warehouse.NewWarehouse("WH-NORTH", "North Regional Depot", warehouse.TypeMain)
	north.Priority = 2

	for _, wh := range []*warehouse.Warehouse{central, north} {
		if err := warehouseService.Create(ctx, wh); err != nil {
			log.Fatalw("failed to create warehouse", "code", wh.Code, "error", err)
		}
		log.Infow("warehouse created", "code", wh.Code, "id", wh.ID)
	}

	// --- Carriers ---
	express := carrier.NewCarrier("CAR-EXP", "Express Logistics")
	phone := "+1-555-0101"
	express.ContactPhone = &phone
	if err := carrierService.Create(ctx, express); err != nil {
		log.Fatalw("failed to create carrier", "error", err)
	}
	log.Infow("carrier created", "code", express.Code, "id", express.ID)

	// --- Products with opening stock ---
	demo := []struct {
		sku   string
		name  string
		price string
		stock int64
	}{
		{"SKU-1001", "Steel Shelving Unit", "129.90", 40},
		{"SKU-1002", "Pallet Jack", "349.00", 12},
		{"SKU-1003", "Packing Tape (36 rolls)", "42.50", 200},
		{"SKU-1004", "Cardboard Box M (50 pack)", "31.00", 150},
		{"SKU-1005", "Forklift Battery", "1890.00", 4},
	}

	actor := "seed"
	for _, d := range demo {
		price, err := types.NewMoneyFromString(d.price)
		if err != nil {
			log.Fatalw("invalid seed price", "sku", d.sku, "error", err)
		}

		p := product.NewProduct("", d.name, price)
		sku := d.sku
		p.SKU = &sku
		if err := productService.Create(ctx, p); err != nil {
			log.Fatalw("failed to create product", "sku", d.sku, "error", err)
		}

		ref := inventory.Reference{Type: "adjustment", ID: id.New(), Actor: actor}
		qty := types.NewQuantityFromInt(d.stock)
		if err := ledger.SetExact(ctx, p.ID, central.ID, qty, ref); err != nil {
			log.Fatalw("failed to set opening stock", "sku", d.sku, "error", err)
		}

		log.Infow("product seeded", "sku", d.sku, "id", p.ID, "stock", qty)
	}

	log.Info("seed complete")
}
