// Command replicator reconciles replication tables and writes replicated
// records into a relational target.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"db_replicator/internal/config"
	"db_replicator/internal/connectors"
	"db_replicator/internal/domain"
	"db_replicator/internal/logger"
	"db_replicator/internal/services/replication"

	"github.com/spf13/cobra"
)

var (
	configPath string
	targetName string

	cfg *config.Config
	l   *logger.Log
)

var rootCmd = &cobra.Command{
	Use:           "replicator",
	Short:         "Replication table reconciler and record writer",
	Long:          `replicator keeps golden and version tables of a replication job in line with its shape and upserts replicated records into them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.GetConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		l, err = logger.NewLogger(cfg.Logger.Target, cfg.Logger.Level, cfg.Logger.Filename)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if targetName != "" {
			cfg.Replication.Target = targetName
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config")
	rootCmd.PersistentFlags().StringVarP(&targetName, "target", "t", "", "target name, defaults to replication.target")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connectTarget opens and pings the configured replication target.
func connectTarget() (connectors.DatabaseConnector, error) {
	target, err := cfg.FindDatabaseConfig(cfg.Replication.Target)
	if err != nil {
		return nil, err
	}
	conn, err := connectors.NewConnector(*target)
	if err != nil {
		return nil, err
	}
	l.Infof("Connecting to %s '%s'", target.Type, target.Name)
	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target.Name, err)
	}
	l.Infof("%s connection %s successful", target.Type, target.Name)
	return conn, nil
}

// newReconciler wires the reconciler of a connected target from the config.
func newReconciler(conn connectors.DatabaseConnector) (*replication.Reconciler, replication.Upserter, error) {
	upserter, err := replication.NewUpserter(cfg.Replication.UpsertStrategy, conn, l)
	if err != nil {
		return nil, nil, err
	}
	metaData := replication.NewMetaDataStore(conn, conn, upserter, l)
	reconciler := replication.NewReconciler(conn, metaData, l,
		replication.WithMetaDataSchema(cfg.Replication.MetaDataSchema),
		replication.WithPostProcedures(conn, cfg.Replication.PostProcedure),
	)
	return reconciler, upserter, nil
}

func readRequest(path string) (*domain.PrepareWriteRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return decodeRequest(data)
}

func decodeRequest(data []byte) (*domain.PrepareWriteRequest, error) {
	var req domain.PrepareWriteRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, domain.WrapError(domain.KindConfiguration, "decode request", "malformed prepare write request", err)
	}
	return &req, nil
}
