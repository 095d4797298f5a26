// resync is the admin tool for repairing batch prices after data migrations
// or partially failed propagation runs. It re-derives every linked batch's
// base price from its order's current line prices and re-allocates additional
// costs; safe to run repeatedly.
package main

import (
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/pharma-erp/backend/internal/pricing"
	"github.com/pharma-erp/backend/internal/store/postgres"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func openPropagator(c *cli.Context) (*pricing.Propagator, *sqlx.DB, error) {
	db, err := sqlx.Connect("pgx", c.String("db-url"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	documentStore := postgres.NewDocumentStore(postgres.NewDBFromConnection(db))
	return pricing.NewPropagator(documentStore, nil), db, nil
}

func resyncOrder(c *cli.Context) error {
	orderID := c.Args().First()
	if orderID == "" {
		return fmt.Errorf("order id argument is required")
	}

	propagator, db, err := openPropagator(c)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := propagator.Resync(c.Context, orderID)
	if err != nil {
		return fmt.Errorf("resync of order %s failed: %w", orderID, err)
	}

	printReport(orderID, report)
	if !report.Ok() {
		return fmt.Errorf("%d batch writes failed for order %s", len(report.Failed), orderID)
	}
	return nil
}

func resyncAll(c *cli.Context) error {
	propagator, db, err := openPropagator(c)
	if err != nil {
		return err
	}
	defer db.Close()

	var orderIDs []string
	if err := db.SelectContext(c.Context, &orderIDs,
		`SELECT id FROM documents WHERE collection = 'PurchaseOrder' ORDER BY id`); err != nil {
		return fmt.Errorf("failed to list purchase orders: %w", err)
	}

	failures := 0
	for _, orderID := range orderIDs {
		report, err := propagator.Resync(c.Context, orderID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "order %s: %v\n", orderID, err)
			failures++
			continue
		}
		printReport(orderID, report)
		if !report.Ok() {
			failures++
		}
	}

	fmt.Printf("resynced %d orders, %d with failures\n", len(orderIDs), failures)
	if failures > 0 {
		return fmt.Errorf("%d orders did not resync cleanly", failures)
	}
	return nil
}

func printReport(orderID string, report *pricing.WriteReport) {
	fmt.Printf("order %s: %d batches updated, %d failed\n", orderID, len(report.Succeeded), len(report.Failed))
	for _, failure := range report.Failed {
		fmt.Fprintf(os.Stderr, "  %s\n", failure.Error())
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env file: %v", err)
	}

	app := &cli.App{
		Name:  "resync",
		Usage: "Rebuild inventory batch prices from their purchase orders",
		Commands: []*cli.Command{
			{
				Name:      "order",
				Usage:     "Resync a single purchase order",
				ArgsUsage: "<order-id>",
				Flags:     []cli.Flag{newDBURLFlag()},
				Action:    resyncOrder,
			},
			{
				Name:   "all",
				Usage:  "Resync every purchase order",
				Flags:  []cli.Flag{newDBURLFlag()},
				Action: resyncAll,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
