package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"db_replicator/internal/domain"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count <shape.json>",
	Short: "Count the records of a shape on the target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read shape: %w", err)
		}
		var shape domain.Shape
		if err := json.Unmarshal(data, &shape); err != nil {
			return domain.WrapError(domain.KindConfiguration, "decode shape", "malformed shape", err)
		}

		conn, err := connectTarget()
		if err != nil {
			return err
		}
		defer conn.Disconnect()

		count, err := conn.GetCount(context.Background(), &shape, cfg.Replication.DisableDiscoveryCounts)
		if err != nil {
			return err
		}
		if count.Kind == domain.CountUnavailable {
			pterm.Warning.Printfln("count of %s is unavailable", shape.ID)
			return nil
		}
		pterm.Info.Printfln("%s: %d records", shape.ID, count.Value)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
}
