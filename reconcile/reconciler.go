package reconcile

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/mmdatafocus/po_import/coerce"
	"github.com/mmdatafocus/po_import/fieldschema"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTable       = "Project PO"
	DefaultVendorField = "Vendor"
)

var tracer = otel.Tracer("github.com/mmdatafocus/po_import/reconcile")

type Reconciler struct {
	schema          *fieldschema.Schema
	store           Store
	locker          KeyLocker
	logger          logrus.FieldLogger
	table           string
	nonCatalogField string
	vendorField     string
	unitShim        bool
	dryRun          bool
	concurrency     int
	location        *time.Location
}

type Option func(*Reconciler)

func WithTable(table string) Option { return func(r *Reconciler) { r.table = table } }

func WithKeyLocker(l KeyLocker) Option { return func(r *Reconciler) { r.locker = l } }

func WithLogger(l logrus.FieldLogger) Option { return func(r *Reconciler) { r.logger = l } }

func WithNonCatalogField(name string) Option { return func(r *Reconciler) { r.nonCatalogField = name } }

func WithVendorField(name string) Option { return func(r *Reconciler) { r.vendorField = name } }

// WithUnitNameShim keeps wrapping the "Unit" column as a single-select choice even when
// the schema declares another type. It exists for sheets built against older schemas.
func WithUnitNameShim(on bool) Option { return func(r *Reconciler) { r.unitShim = on } }

// WithDryRun plans mutations without sending them.
func WithDryRun(on bool) Option { return func(r *Reconciler) { r.dryRun = on } }

func WithConcurrency(n int) Option { return func(r *Reconciler) { r.concurrency = n } }

func WithLocation(loc *time.Location) Option { return func(r *Reconciler) { r.location = loc } }

func New(schema *fieldschema.Schema, store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		schema:          schema,
		store:           store,
		table:           DefaultTable,
		nonCatalogField: fieldschema.FieldNonCatalog,
		vendorField:     DefaultVendorField,
		unitShim:        true,
		concurrency:     4,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.locker == nil {
		r.locker = NewLocalKeyLocker()
	}
	if r.logger == nil {
		r.logger = logrus.StandardLogger()
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	return r
}

func (r *Reconciler) Table() string { return r.table }

func (r *Reconciler) DryRun() bool { return r.dryRun }

// BuildFields coerces a row into the field map sent to the store and merges rc.Fields.
// Unknown columns abort the row; unparseable dates only drop the field.
func (r *Reconciler) BuildFields(row Row, rc RowContext) (FieldMap, error) {
	names := make([]string, 0, len(row.Data))
	for name := range row.Data {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := FieldMap{}
	for _, name := range names {
		if name == fieldschema.FieldRowTotal {
			continue
		}
		raw := row.Data[name]

		def, err := r.schema.Lookup(name)
		if err != nil {
			return nil, err
		}
		if declared, ok := row.MapType[name]; ok && declared != def.Type {
			r.logger.WithFields(logrus.Fields{
				"row":      row.Number,
				"field":    name,
				"row_type": declared,
				"type":     def.Type,
			}).Warn("row type differs from schema; using schema type")
		}

		switch def.Type {
		case fieldschema.FieldTypeTotal, fieldschema.FieldTypeSkip:
			continue
		case fieldschema.FieldTypeLinkedRecord:
			if name == r.nonCatalogField && rc.NonCatalogID != "" {
				fields[name] = coerce.Links(rc.NonCatalogID)
			}
			continue
		}

		fieldType := def.Type
		if r.unitShim && name == fieldschema.FieldUnit && fieldType != fieldschema.FieldTypeSingleSelect {
			r.logger.WithFields(logrus.Fields{
				"row":   row.Number,
				"field": name,
				"type":  def.Type,
			}).Warn("unit name shim wrapped field as single select; schema should declare it")
			fieldType = fieldschema.FieldTypeSingleSelect
		}

		opts := coerce.OptionsFor(def)
		opts.Location = r.location
		v, err := coerce.Coerce(raw, fieldType, opts)
		if err != nil {
			var dateErr *coerce.DateParseError
			if errors.As(err, &dateErr) {
				r.logger.WithFields(logrus.Fields{
					"row":   row.Number,
					"field": name,
				}).Warn(err.Error())
				continue
			}
			return nil, err
		}
		if v.IsNull() {
			continue
		}
		fields[name] = v
	}

	// the natural key must be on the record or the next lookup cannot find it
	if rc.NonCatalogID != "" {
		fields[r.nonCatalogField] = coerce.Links(rc.NonCatalogID)
	}
	if rc.VendorID != "" {
		fields[r.vendorField] = coerce.Links(rc.VendorID)
	}

	for name, v := range rc.Fields {
		if r.schema.Has(name) && !r.schema.Outbound(name) {
			continue
		}
		if v.IsNull() {
			continue
		}
		fields[name] = v
	}
	return fields, nil
}

// Plan decides create or update for a row without writing anything.
func (r *Reconciler) Plan(ctx context.Context, row Row, rc RowContext) (MutationRequest, error) {
	key, err := rc.Key()
	if err != nil {
		return MutationRequest{}, err
	}
	fields, err := r.BuildFields(row, rc)
	if err != nil {
		return MutationRequest{}, err
	}
	return r.plan(ctx, key, fields)
}

func (r *Reconciler) plan(ctx context.Context, key NaturalKey, fields FieldMap) (MutationRequest, error) {
	filter := Filter{
		LinkedTo(r.nonCatalogField, key.NonCatalogID),
		LinkedTo(r.vendorField, key.VendorID),
	}
	existing, err := r.store.Find(ctx, r.table, filter, fields.Names())
	if err != nil {
		return MutationRequest{}, err
	}

	m := MutationRequest{Table: r.table, Key: key, Fields: fields}
	switch len(existing) {
	case 0:
		m.Op = OpCreate
	case 1:
		m.Op = OpUpdate
		m.RecordID = existing[0].ID
	default:
		ids := make([]string, 0, len(existing))
		for _, rec := range existing {
			ids = append(ids, rec.ID)
		}
		return MutationRequest{}, &AmbiguousMatchError{Key: key, RecordIDs: ids}
	}
	return m, nil
}

// Apply sends a planned mutation. Store errors are returned unchanged.
func (r *Reconciler) Apply(ctx context.Context, m MutationRequest) (Record, error) {
	if m.Op == OpUpdate {
		return r.store.Update(ctx, m.Table, m.RecordID, m.Fields)
	}
	return r.store.Create(ctx, m.Table, m.Fields)
}

// ReconcileRow holds the natural-key lock across the lookup and the write so two rows
// with the same key cannot both create a record.
func (r *Reconciler) ReconcileRow(ctx context.Context, row Row, rc RowContext) (res Result, err error) {
	ctx, span := tracer.Start(ctx, "reconcile.ReconcileRow", trace.WithAttributes(
		attribute.Int("po_import.row", row.Number),
		attribute.String("po_import.table", r.table),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	key, err := rc.Key()
	if err != nil {
		return Result{}, err
	}
	fields, err := r.BuildFields(row, rc)
	if err != nil {
		return Result{}, err
	}

	unlock, err := r.locker.Lock(ctx, r.table+":"+key.String())
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	m, err := r.plan(ctx, key, fields)
	if err != nil {
		return Result{}, err
	}
	span.SetAttributes(attribute.String("po_import.op", string(m.Op)))

	res = Result{Mutation: m}
	if r.dryRun {
		return res, nil
	}
	rec, err := r.Apply(ctx, m)
	if err != nil {
		return Result{}, err
	}
	res.Record = rec
	res.Applied = true

	r.logger.WithFields(logrus.Fields{
		"row":         row.Number,
		"natural_key": key.String(),
		"op":          m.Op,
		"record_id":   rec.ID,
	}).Debug("row reconciled")
	return res, nil
}
