/*
main.go - Operator CLI for the maintenance interval engine

PURPOSE:
  Offline administration against the engine's database, without going
  through the HTTP API. The main use is running a full or per-vehicle
  recalculation from a cron job or a shell during incident recovery.

COMMANDS:
  maintctl recalc --db ./maintenance.db             Rebuild every row
  maintctl recalc --db ./maintenance.db --vehicle v1  Rebuild one vehicle

SEE ALSO:
  - interval/recalculator.go: The rebuild implementation
  - api/scheduler.go: The in-process scheduled equivalent
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/warp/maintenance-engine/interval"
	"github.com/warp/maintenance-engine/store/sqlite"
)

func main() {
	var (
		dbPath    string
		vehicleID string
	)

	root := &cobra.Command{
		Use:   "maintctl",
		Short: "Operator tooling for the maintenance interval engine",
	}

	recalcCmd := &cobra.Command{
		Use:   "recalc",
		Short: "Rebuild derived service intervals from expense history",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

			store, err := sqlite.New(dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()

			gate := &interval.RebuildGate{}
			resolver := interval.NewSettingsResolver(store, store)
			recalc := interval.NewRecalculator(store, store, resolver, store, gate, log)

			ctx := context.Background()
			var n int
			if vehicleID != "" {
				n, err = recalc.RecalculateForVehicle(ctx, interval.VehicleID(vehicleID))
			} else {
				n, err = recalc.RecalculateAll(ctx)
			}
			if err != nil {
				return err
			}

			fmt.Printf("rebuilt %d interval rows\n", n)
			return nil
		},
	}
	recalcCmd.Flags().StringVar(&dbPath, "db", "maintenance.db", "SQLite database path")
	recalcCmd.Flags().StringVar(&vehicleID, "vehicle", "", "rebuild only this vehicle")

	root.AddCommand(recalcCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
