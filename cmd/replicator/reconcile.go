package main

import (
	"context"
	"strings"

	"db_replicator/internal/services/replication"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <request.json>",
	Short: "Reconcile the replication tables of a job with its prepare write request",
	Long: `reconcile compares the request with the metadata stored by the previous run of the same job,
drops and recreates the golden and version tables that changed and stores the request as the new metadata.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := readRequest(args[0])
		if err != nil {
			return err
		}
		conn, err := connectTarget()
		if err != nil {
			return err
		}
		defer conn.Disconnect()

		reconciler, _, err := newReconciler(conn)
		if err != nil {
			return err
		}
		result, err := reconciler.Reconcile(context.Background(), req)
		if err != nil {
			return err
		}
		return renderReconciliation(result)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func renderReconciliation(result *replication.Reconciliation) error {
	pterm.DefaultSection.Printfln("Job %s (run %s)", result.JobID, result.RunID)
	pterm.Println("States: " + joinStates(result.States))

	action := func(drop bool) string {
		if drop {
			return pterm.FgYellow.Sprint("rebuilt")
		}
		return pterm.FgGreen.Sprint("kept")
	}
	data := pterm.TableData{
		{"Target", "Table", "Action", "Reasons"},
		{"golden", result.GoldenTable.ID(), action(result.DropGolden()), joinStates(result.GoldenReasons)},
		{"version", result.VersionTable.ID(), action(result.DropVersion()), joinStates(result.VersionReasons)},
		{"metadata", result.MetaDataTable.ID(), "stored", result.Timestamp.Format("2006-01-02 15:04:05")},
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func joinStates(states []replication.State) string {
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = string(s)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
