package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mmdatafocus/po_import/airtable"
	"github.com/mmdatafocus/po_import/config"
	"github.com/mmdatafocus/po_import/fieldschema"
	"github.com/mmdatafocus/po_import/models"
	"github.com/mmdatafocus/po_import/reconcile"
	"github.com/mmdatafocus/po_import/sheetimport"
	"github.com/mmdatafocus/po_import/workflow"
)

var errRunIncomplete = errors.New("import finished with failed rows")

type options struct {
	filePath  string
	gcsBucket string
	gcsObject string
	sheet     string
	vendorID  string
	phaseID   string
	runID     string
	dryRun    bool
	strict    bool
	migrate   bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("po-import", flag.ContinueOnError)
	fs.StringVar(&opts.filePath, "file", "", "Local .xlsx or .csv file with PO lines")
	fs.StringVar(&opts.gcsBucket, "gcs-bucket", "", "Bucket holding the uploaded sheet (with -gcs-object)")
	fs.StringVar(&opts.gcsObject, "gcs-object", "", "Object name of the uploaded sheet")
	fs.StringVar(&opts.sheet, "sheet", "", "Optional: worksheet name (default first sheet)")
	fs.StringVar(&opts.vendorID, "vendor", "", "Required: vendor record id")
	fs.StringVar(&opts.phaseID, "phase", "", "Optional: phase record id linked on every line")
	fs.StringVar(&opts.runID, "run-id", "", "Optional: run id; reusing the id of a successful run is refused")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Plan creates/updates without writing to the record store")
	fs.BoolVar(&opts.strict, "strict", false, "Reject rows carrying columns outside the PO schema instead of dropping the columns")
	fs.BoolVar(&opts.migrate, "migrate", false, "Create the run ledger tables before importing")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	opts.filePath = strings.TrimSpace(opts.filePath)
	opts.gcsBucket = strings.TrimSpace(opts.gcsBucket)
	opts.gcsObject = strings.TrimSpace(opts.gcsObject)
	opts.vendorID = strings.TrimSpace(opts.vendorID)
	opts.phaseID = strings.TrimSpace(opts.phaseID)

	if opts.vendorID == "" {
		return opts, errors.New("--vendor is required")
	}
	fromFile := opts.filePath != ""
	fromGCS := opts.gcsBucket != "" || opts.gcsObject != ""
	if fromFile == fromGCS {
		return opts, errors.New("exactly one of --file or --gcs-bucket/--gcs-object is required")
	}
	if fromGCS && (opts.gcsBucket == "" || opts.gcsObject == "") {
		return opts, errors.New("both --gcs-bucket and --gcs-object are required")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, opts)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.LoadImportConfig()
	if err != nil {
		return err
	}
	logger := config.GetLogger()

	if err := config.ConnectRedis(ctx, 3); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer config.CloseRedis()
	if err := config.ConnectDatabase(ctx, 3); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	db := config.GetDB()
	if db != nil && opts.migrate {
		if err := models.MigrateTable(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var locker reconcile.KeyLocker = reconcile.NewLocalKeyLocker()
	if lock := config.GetRedisLock(); lock != nil {
		locker = reconcile.NewRedisKeyLocker(lock, cfg.LockTTL)
	}

	store, err := airtable.New(airtable.Config{
		BaseURL:         cfg.StoreBaseURL,
		BaseID:          cfg.StoreBaseID,
		APIKey:          cfg.StoreAPIKey,
		RateLimitPerSec: cfg.StoreRateLimitPerSec,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	schema := fieldschema.PurchaseOrderLines()
	source, parsed, err := readSheet(ctx, opts, schema)
	if err != nil {
		return fmt.Errorf("read sheet: %w", err)
	}
	if len(parsed.DroppedColumns) > 0 {
		logger.WithField("columns", parsed.DroppedColumns).Warn("columns outside the PO schema were dropped")
	}

	reconciler := reconcile.New(schema, store,
		reconcile.WithTable(cfg.POTable),
		reconcile.WithKeyLocker(locker),
		reconcile.WithLogger(logger),
		reconcile.WithVendorField(cfg.VendorField),
		reconcile.WithUnitNameShim(cfg.UnitNameShim),
		reconcile.WithDryRun(opts.dryRun),
		reconcile.WithConcurrency(cfg.Concurrency),
		reconcile.WithLocation(cfg.Location()),
	)
	importer := &workflow.Importer{
		Reconciler: reconciler,
		NonCatalog: workflow.NewNonCatalogResolver(store, cfg.NonCatalogTable, cfg.NonCatalogKeyField,
			workflow.WithCreateMissing(cfg.CreateNonCatalog),
			workflow.WithResolverDryRun(opts.dryRun),
			workflow.WithResolverLocker(locker),
			workflow.WithResolverLogger(logger),
		),
		DB:         db,
		Logger:     logger,
		PhaseField: cfg.PhaseField,
	}

	report, err := importer.Run(ctx, workflow.ImportRequest{
		RunId:    opts.runID,
		Source:   source,
		Rows:     parsed.Rows,
		VendorID: opts.vendorID,
		PhaseID:  opts.phaseID,
	})
	if errors.Is(err, models.ErrImportRunCompleted) {
		fmt.Printf("run %s already completed; nothing to do\n", report.RunId)
		return nil
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	for _, res := range report.Results {
		if res.Err != nil {
			code, _ := workflow.ErrorCode(res.Err)
			fmt.Printf("row %d: %s: %v\n", res.Row.Number, code, res.Err)
			continue
		}
		if opts.dryRun {
			m := res.Result.Mutation
			fmt.Printf("row %d: would %s %s %s\n", res.Row.Number, m.Op, m.Table, m.RecordID)
		}
	}
	fmt.Printf("run %s %s: rows=%d created=%d updated=%d planned=%d failed=%d\n",
		report.RunId, report.Status, report.Stats.Rows, report.Stats.Created,
		report.Stats.Updated, report.Stats.Planned, report.Stats.Failed)
	if report.Status != models.ImportRunStatusSuccess {
		return errRunIncomplete
	}
	return nil
}

func readSheet(ctx context.Context, opts options, schema *fieldschema.Schema) (string, sheetimport.Result, error) {
	sheetOpts := sheetimport.Options{Sheet: opts.sheet, Strict: opts.strict}
	if opts.filePath != "" {
		res, err := sheetimport.ReadFile(opts.filePath, schema, sheetOpts)
		return opts.filePath, res, err
	}

	client, err := config.NewGCSClient(ctx)
	if err != nil {
		return "", sheetimport.Result{}, err
	}
	defer client.Close()

	rc, err := sheetimport.OpenGCS(ctx, client, opts.gcsBucket, opts.gcsObject)
	if err != nil {
		return "", sheetimport.Result{}, err
	}
	defer rc.Close()

	source := fmt.Sprintf("gs://%s/%s", opts.gcsBucket, opts.gcsObject)
	res, err := sheetimport.Read(opts.gcsObject, rc, schema, sheetOpts)
	return source, res, err
}
