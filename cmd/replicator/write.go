package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"db_replicator/internal/domain"
	"db_replicator/internal/logger"
	"db_replicator/internal/services/replication"

	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// maxLineSize bounds one NDJSON line.
const maxLineSize = 16 << 20

var transformName string

// transforms are the named record transforms selectable with --transform.
var transforms = map[string]func(map[string]any) map[string]any{
	"lowercase_keys": lowercaseKeys,
	"trim_strings":   trimStrings,
}

var writeCmd = &cobra.Command{
	Use:   "write [records.ndjson]",
	Short: "Reconcile a job and upsert a stream of replicated records",
	Long: `write reads newline-delimited JSON from the given file or stdin. The first line is the prepare write
request, every following line a record {"recordId", "versionIds", "action", "data"}. The job is reconciled
first, then records are written by replication.workers goroutines. SIGINT and SIGTERM stop reading and wait
for in-flight records up to replication.shutdown_timeout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = os.Stdin
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open records: %w", err)
			}
			defer f.Close()
			in = f
		}

		var opts []replication.MapperOption
		if transformName != "" {
			fn, ok := transforms[transformName]
			if !ok {
				return fmt.Errorf("unknown transform %q", transformName)
			}
			opts = append(opts, replication.WithTransform(fn))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)
		go func() {
			select {
			case <-quit:
				l.Info("Shutting down...")
				cancel()
			case <-ctx.Done():
			}
		}()

		conn, err := connectTarget()
		if err != nil {
			return err
		}
		defer conn.Disconnect()

		reconciler, upserter, err := newReconciler(conn)
		if err != nil {
			return err
		}

		stats, err := runWrite(ctx, in, reconciler, upserter, l, writeOptions{
			workers:         cfg.Replication.Workers,
			shutdownTimeout: cfg.Replication.ShutdownTimeout,
			mapper:          opts,
		})
		if err != nil {
			return err
		}

		if err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
			{"Written", "Failed"},
			{fmt.Sprint(stats.written), fmt.Sprint(stats.failed)},
		}).Render(); err != nil {
			return err
		}
		if stats.failed > 0 {
			return fmt.Errorf("%d records failed", stats.failed)
		}
		return nil
	},
}

func init() {
	writeCmd.Flags().StringVar(&transformName, "transform", "", "record transform applied before mapping (lowercase_keys, trim_strings)")
	rootCmd.AddCommand(writeCmd)
}

type writeOptions struct {
	workers         int
	shutdownTimeout time.Duration
	mapper          []replication.MapperOption
}

type writeStats struct {
	written int64
	failed  int64
}

// runWrite reconciles the job of the first line and fans the remaining
// records out to a pool of writers. Failed records are logged and counted.
func runWrite(
	ctx context.Context,
	in io.Reader,
	reconciler *replication.Reconciler,
	upserter replication.Upserter,
	log *logger.Log,
	opts writeOptions,
) (writeStats, error) {
	var stats writeStats

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return stats, fmt.Errorf("read request: %w", err)
		}
		return stats, domain.NewError(domain.KindConfiguration, "write", "empty input, expected a prepare write request")
	}
	req, err := decodeRequest(scanner.Bytes())
	if err != nil {
		return stats, err
	}

	result, err := reconciler.Reconcile(ctx, req)
	if err != nil {
		return stats, err
	}
	log = log.With(logrus.Fields{"job_id": result.JobID, "run_id": result.RunID})
	writer := replication.NewWriter(upserter, result, log, opts.mapper...)

	workers := opts.workers
	if workers <= 0 {
		workers = 1
	}
	records := make(chan *domain.ReplicationRecord, workers*2)

	var wg sync.WaitGroup
	var written, failed atomic.Int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range records {
				// in-flight records finish even after a shutdown signal
				if err := writer.WriteRecord(context.WithoutCancel(ctx), rec); err != nil {
					failed.Add(1)
					log.WithField("record_id", rec.RecordID).Errorf("write failed: %v", err)
					continue
				}
				written.Add(1)
			}
		}()
	}

	line := 1
	var readErr error
read:
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			failed.Add(1)
			log.WithField("line", line).Errorf("skipping record: %v", err)
			continue
		}
		select {
		case records <- rec:
		case <-ctx.Done():
			break read
		}
	}
	if err := scanner.Err(); err != nil {
		readErr = fmt.Errorf("read records: %w", err)
	}
	close(records)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("All records processed")
	case <-ctx.Done():
		select {
		case <-done:
			log.Info("All in-flight records completed")
		case <-time.After(opts.shutdownTimeout):
			log.Error("Timeout while waiting for writers to complete")
		}
	}

	stats.written = written.Load()
	stats.failed = failed.Load()
	return stats, readErr
}

func decodeRecord(raw []byte) (*domain.ReplicationRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rec domain.ReplicationRecord
	if err := dec.Decode(&rec); err != nil {
		return nil, domain.WrapError(domain.KindConfiguration, "decode record", "malformed record", err)
	}
	return &rec, nil
}

func lowercaseKeys(r map[string]any) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[strings.ToLower(k)] = v
	}
	return out
}

func trimStrings(r map[string]any) map[string]any {
	for k, v := range r {
		if s, ok := v.(string); ok {
			r[k] = strings.TrimSpace(s)
		}
	}
	return r
}
