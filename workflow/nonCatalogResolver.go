package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mmdatafocus/po_import/coerce"
	"github.com/mmdatafocus/po_import/config"
	"github.com/mmdatafocus/po_import/reconcile"
	"github.com/sirupsen/logrus"
)

var ErrNonCatalogNotFound = errors.New("non-catalog record not found")

// PendingNonCatalogPrefix marks ids that a dry run would have created.
const PendingNonCatalogPrefix = "pending:"

type NonCatalogConflictError struct {
	SKU       string
	RecordIDs []string
}

func (e *NonCatalogConflictError) Error() string {
	return fmt.Sprintf("%d non-catalog records share SKU %q: %s", len(e.RecordIDs), e.SKU, strings.Join(e.RecordIDs, ", "))
}

// NonCatalogResolver maps a SKU to the id of its non-catalog record, optionally creating
// the record. Lookups for one SKU are serialized and cached for the resolver's lifetime.
type NonCatalogResolver struct {
	store    reconcile.Store
	table    string
	keyField string
	create   bool
	dryRun   bool
	locker   reconcile.KeyLocker
	logger   logrus.FieldLogger

	mu    sync.Mutex
	cache map[string]string
}

type NonCatalogOption func(*NonCatalogResolver)

func WithCreateMissing(on bool) NonCatalogOption {
	return func(r *NonCatalogResolver) { r.create = on }
}

func WithResolverDryRun(on bool) NonCatalogOption {
	return func(r *NonCatalogResolver) { r.dryRun = on }
}

func WithResolverLocker(l reconcile.KeyLocker) NonCatalogOption {
	return func(r *NonCatalogResolver) { r.locker = l }
}

func WithResolverLogger(l logrus.FieldLogger) NonCatalogOption {
	return func(r *NonCatalogResolver) { r.logger = l }
}

func NewNonCatalogResolver(store reconcile.Store, table, keyField string, opts ...NonCatalogOption) *NonCatalogResolver {
	r := &NonCatalogResolver{
		store:    store,
		table:    table,
		keyField: keyField,
		cache:    map[string]string{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.locker == nil {
		r.locker = reconcile.NewLocalKeyLocker()
	}
	if r.logger == nil {
		r.logger = config.GetLogger()
	}
	return r
}

// Resolve returns "" for an empty SKU so the row fails with a missing natural key.
func (r *NonCatalogResolver) Resolve(ctx context.Context, sku string) (string, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return "", nil
	}
	if id, ok := r.cached(sku); ok {
		return id, nil
	}

	unlock, err := r.locker.Lock(ctx, "non-catalog:"+r.table+":"+sku)
	if err != nil {
		return "", err
	}
	defer unlock()

	if id, ok := r.cached(sku); ok {
		return id, nil
	}

	recs, err := r.store.Find(ctx, r.table, reconcile.Filter{reconcile.Equals(r.keyField, sku)}, []string{r.keyField})
	if err != nil {
		return "", err
	}

	var id string
	switch len(recs) {
	case 0:
		if !r.create {
			return "", fmt.Errorf("%w: %s", ErrNonCatalogNotFound, sku)
		}
		id, err = r.createRecord(ctx, sku)
		if err != nil {
			return "", err
		}
	case 1:
		id = recs[0].ID
	default:
		ids := make([]string, 0, len(recs))
		for _, rec := range recs {
			ids = append(ids, rec.ID)
		}
		return "", &NonCatalogConflictError{SKU: sku, RecordIDs: ids}
	}

	r.mu.Lock()
	r.cache[sku] = id
	r.mu.Unlock()
	return id, nil
}

func (r *NonCatalogResolver) createRecord(ctx context.Context, sku string) (string, error) {
	if r.dryRun {
		return PendingNonCatalogPrefix + sku, nil
	}
	rec, err := r.store.Create(ctx, r.table, reconcile.FieldMap{r.keyField: coerce.String(sku)})
	if err != nil {
		return "", err
	}
	r.logger.WithFields(logrus.Fields{
		"sku":       sku,
		"record_id": rec.ID,
		"table":     r.table,
	}).Info("non-catalog record created")
	return rec.ID, nil
}

func (r *NonCatalogResolver) cached(sku string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.cache[sku]
	return id, ok
}
