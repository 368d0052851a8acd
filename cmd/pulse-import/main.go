// Command pulse-import loads the quarter-file tree into the SQLite store and
// notifies running servers that a new table is available.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"pulse/internal/amqp"
	"pulse/internal/cli"
	"pulse/internal/ingest"
	plog "pulse/internal/log"
	"pulse/internal/services"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), plog.ComponentImport)
	cfg := cli.LoadAndValidateConfig(bootLogger.Logger)

	dir := flag.String("dir", cfg.DataDir, "root of the state/year/quarter tree")
	timeout := flag.Duration("timeout", 10*time.Minute, "maximum duration of the import")
	flag.Parse()

	logger := cli.SetupLogger(cfg.LogLevel, plog.ComponentImport)
	base := logger.Base()

	repo := cli.InitSQLite(base, cfg.SQLiteDBPath)

	var publisher services.ReloadPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, base)
		if err != nil {
			logger.Warn("AMQP unavailable, servers will not be notified", plog.FieldError, err)
		} else {
			publisher = client
		}
	}

	importer := services.NewImportService(ingest.NewLoader(cfg.LoadWorkers, base), repo, publisher, base)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	report, err := importer.Import(ctx, *dir)
	cancel()

	if closeErr := importer.Close(); closeErr != nil {
		logger.Warn("Close failed", plog.FieldError, closeErr)
	}
	if err != nil {
		logger.Error("Import failed", plog.FieldOperation, plog.OpImport, plog.FieldRoot, *dir, plog.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Import finished",
		plog.FieldOperation, plog.OpImport,
		plog.FieldRunID, report.RunID,
		plog.FieldRoot, *dir,
		plog.FieldRecords, report.RecordCount(),
		"files_loaded", report.FilesLoaded(),
		"files_skipped", report.FilesSkipped(),
		"entries_skipped", report.EntriesSkipped())
}
