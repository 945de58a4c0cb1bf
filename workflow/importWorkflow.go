package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/mmdatafocus/po_import/coerce"
	"github.com/mmdatafocus/po_import/config"
	"github.com/mmdatafocus/po_import/fieldschema"
	"github.com/mmdatafocus/po_import/models"
	"github.com/mmdatafocus/po_import/reconcile"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Importer runs one sheet through non-catalog resolution and reconciliation and keeps
// the run ledger when DB is set.
type Importer struct {
	Reconciler *reconcile.Reconciler
	NonCatalog *NonCatalogResolver
	DB         *gorm.DB
	Logger     logrus.FieldLogger
	// PhaseField receives the request's phase link on every line.
	PhaseField string
}

type ImportRequest struct {
	// RunId defaults to a new uuid. Reusing the id of a successful run is refused.
	RunId    string
	Source   string
	Rows     []reconcile.Row
	VendorID string
	PhaseID  string
}

type ImportReport struct {
	RunId   string
	Status  string
	Stats   models.ImportStats
	Results []reconcile.RowResult
}

func (im *Importer) logger() logrus.FieldLogger {
	if im.Logger == nil {
		return config.GetLogger()
	}
	return im.Logger
}

func (im *Importer) Run(ctx context.Context, req ImportRequest) (ImportReport, error) {
	if req.RunId == "" {
		req.RunId = uuid.NewString()
	}
	report := ImportReport{RunId: req.RunId}
	logger := im.logger().WithField("run_id", req.RunId)

	var run *models.ImportRun
	if im.DB != nil {
		var err error
		run, err = models.BeginImportRun(ctx, im.DB, req.RunId, req.Source, im.Reconciler.Table(), im.Reconciler.DryRun())
		if err != nil {
			if errors.Is(err, models.ErrImportRunCompleted) {
				report.Status = run.Status
			}
			return report, err
		}
	}

	logger.WithFields(logrus.Fields{
		"source":  req.Source,
		"rows":    len(req.Rows),
		"dry_run": im.Reconciler.DryRun(),
	}).Info("import started")

	report.Results = im.Reconciler.ReconcileBatch(ctx, req.Rows, im.rowContext(req))

	stats := models.ImportStats{Rows: len(report.Results)}
	for _, res := range report.Results {
		switch {
		case res.Err != nil:
			stats.Failed++
			im.recordFailure(ctx, logger, req.RunId, res)
		case !res.Result.Applied:
			stats.Planned++
		case res.Result.Mutation.Op == reconcile.OpCreate:
			stats.Created++
		default:
			stats.Updated++
		}
	}
	report.Stats = stats
	report.Status = stats.Status()

	if run != nil {
		// the batch may have been canceled; the ledger row still has to be closed
		if err := models.FinishImportRun(context.WithoutCancel(ctx), im.DB, run, stats); err != nil {
			config.LogError(logger, "workflow", "Run", "finish import run", stats, err)
			return report, err
		}
	}

	logger.WithFields(logrus.Fields{
		"status":  report.Status,
		"created": stats.Created,
		"updated": stats.Updated,
		"planned": stats.Planned,
		"failed":  stats.Failed,
	}).Info("import finished")
	return report, nil
}

func (im *Importer) rowContext(req ImportRequest) reconcile.Resolver {
	fixed := reconcile.FieldMap{}
	if req.PhaseID != "" && im.PhaseField != "" {
		fixed[im.PhaseField] = coerce.Links(req.PhaseID)
	}

	return func(ctx context.Context, row reconcile.Row) (reconcile.RowContext, error) {
		rc := reconcile.RowContext{VendorID: req.VendorID, Fields: fixed}
		if im.NonCatalog == nil {
			return rc, nil
		}
		id, err := im.NonCatalog.Resolve(ctx, rowSKU(row))
		if err != nil {
			return rc, err
		}
		rc.NonCatalogID = id
		return rc, nil
	}
}

func (im *Importer) recordFailure(ctx context.Context, logger logrus.FieldLogger, runId string, res reconcile.RowResult) {
	code, retryable := ErrorCode(res.Err)
	logger.WithFields(logrus.Fields{
		"row":  res.Row.Number,
		"sku":  rowSKU(res.Row),
		"code": code,
	}).Warn(res.Err.Error())

	if im.DB == nil {
		return
	}
	payload, _ := json.Marshal(res.Row.Data)
	rowErr := models.ImportRowError{
		RunId:       runId,
		RowNumber:   res.Row.Number,
		SKU:         rowSKU(res.Row),
		ErrorCode:   code,
		Message:     res.Err.Error(),
		PayloadJSON: payload,
		Retryable:   retryable,
	}
	if err := models.RecordRowError(context.WithoutCancel(ctx), im.DB, &rowErr); err != nil {
		config.LogError(logger, "workflow", "recordFailure", "record row error", res.Row.Number, err)
	}
}

// ErrorCode classifies a row failure for the run ledger.
func ErrorCode(err error) (code string, retryable bool) {
	var unknown *fieldschema.UnknownFieldError
	var ambiguous *reconcile.AmbiguousMatchError
	var conflict *NonCatalogConflictError
	var temporary interface{ Retryable() bool }

	switch {
	case errors.As(err, &unknown):
		return models.ImportErrorUnknownField, false
	case errors.As(err, &ambiguous), errors.As(err, &conflict):
		return models.ImportErrorAmbiguousMatch, false
	case errors.Is(err, reconcile.ErrMissingNaturalKey):
		return models.ImportErrorMissingKey, false
	case errors.Is(err, ErrNonCatalogNotFound):
		return models.ImportErrorNonCatalog, false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.ImportErrorCanceled, true
	case errors.As(err, &temporary):
		return models.ImportErrorStore, temporary.Retryable()
	default:
		return models.ImportErrorStore, true
	}
}

func rowSKU(row reconcile.Row) string {
	raw, ok := row.Data[fieldschema.FieldSKU]
	if !ok || raw == nil {
		return ""
	}
	return strings.TrimSpace(coerce.StringForm(raw))
}
