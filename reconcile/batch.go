package reconcile

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Resolver supplies the related ids and fixed fields for a row.
type Resolver func(ctx context.Context, row Row) (RowContext, error)

// ReconcileBatch reconciles rows concurrently. Rows sharing a natural key are serialized
// by the key locker; a failing row never stops the others. Results keep input order.
func (r *Reconciler) ReconcileBatch(ctx context.Context, rows []Row, resolve Resolver) []RowResult {
	results := make([]RowResult, len(rows))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, row := range rows {
		g.Go(func() error {
			results[i].Row = row
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			rc, err := resolve(ctx, row)
			if err != nil {
				results[i].Err = err
				return nil
			}
			res, err := r.ReconcileRow(ctx, row, rc)
			results[i].Result = res
			results[i].Err = err
			return nil
		})
	}
	_ = g.Wait()
	return results
}
