package main

import (
	"context"

	"db_replicator/internal/connectors"
	"db_replicator/internal/domain"
	"db_replicator/internal/services/replication"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var applyTables bool

var tablesCmd = &cobra.Command{
	Use:   "tables <request.json>",
	Short: "Show the DDL of the replication tables of a request",
	Long: `tables prints the CREATE statements of the golden, version and metadata tables in the dialect
of the target. With --apply the tables are created when missing. Existing tables are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := readRequest(args[0])
		if err != nil {
			return err
		}
		if err := req.Validate(); err != nil {
			return err
		}
		golden, version, err := replication.TablesFor(req)
		if err != nil {
			return err
		}
		metaSchema := cfg.Replication.MetaDataSchema
		if metaSchema == "" {
			metaSchema = golden.SchemaName
		}
		tables := []*domain.ReplicationTable{golden, version, replication.MetaDataTable(metaSchema)}

		target, err := cfg.FindDatabaseConfig(cfg.Replication.Target)
		if err != nil {
			return err
		}
		dialect, err := connectors.DialectFor(target.Type)
		if err != nil {
			return err
		}
		for _, table := range tables {
			pterm.DefaultSection.Println(table.ID())
			if stmt := dialect.CreateSchemaSQL(table.SchemaName); stmt != "" {
				pterm.Println(stmt + ";")
			}
			pterm.Println(dialect.CreateTableSQL(table) + ";")
		}

		if !applyTables {
			return nil
		}
		conn, err := connectTarget()
		if err != nil {
			return err
		}
		defer conn.Disconnect()

		ctx := context.Background()
		for _, table := range tables {
			l.Infof("Creating table %s", table.ID())
			if err := conn.EnsureTable(ctx, table); err != nil {
				return err
			}
		}
		pterm.Success.Printfln("%d tables ensured on %s", len(tables), target.Name)
		return nil
	},
}

func init() {
	tablesCmd.Flags().BoolVar(&applyTables, "apply", false, "create the tables when missing")
	rootCmd.AddCommand(tablesCmd)
}
