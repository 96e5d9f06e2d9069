// ABOUTME: Account migration between record stores.
// ABOUTME: Copies one owner's account from a source store into a destination store atomically.
package storage

import (
	"context"
	"fmt"
)

// MigrateSummary holds counts of migrated entities.
type MigrateSummary = ImportSummary

// MigrateAccount copies owner's full account from src to dst, optionally
// re-owning it as dstOwner. The destination's collections for dstOwner are
// replaced in one atomic unit; the source is left untouched.
func MigrateAccount(ctx context.Context, src, dst Repository, owner, dstOwner int64) (*MigrateSummary, error) {
	doc, err := src.ExportAccount(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("export source account %d: %w", owner, err)
	}
	if dstOwner == 0 {
		dstOwner = owner
	}
	summary, err := dst.ImportAccount(ctx, dstOwner, doc)
	if err != nil {
		return nil, fmt.Errorf("import into destination account %d: %w", dstOwner, err)
	}
	return summary, nil
}
