// ABOUTME: Ownership-safe upsert, the single write path for every record family.
// ABOUTME: Inserts new keys, updates keys the owner already holds, and rejects foreign keys.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/metrics"
)

// DefaultOwnerColumn is the owner column for every table except schedules.
const DefaultOwnerColumn = "telegram_id"

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// UpsertSpec describes one insert-or-update-if-owner write.
type UpsertSpec struct {
	Table         string
	Columns       []string
	Values        []any
	ConflictKey   string
	UpdateColumns []string

	// OwnerColumn defaults to DefaultOwnerColumn.
	OwnerColumn string
	OwnerID     int64
}

// UpsertResult reports whether a row was written.
type UpsertResult struct {
	Applied bool
}

// Upsert inserts the row when its key is new, updates it when the existing
// row has the same owner, and otherwise changes nothing and returns
// errs.ErrOwnershipConflict. Exactly one row or zero rows change.
func Upsert(ctx context.Context, q Querier, spec UpsertSpec) (UpsertResult, error) {
	if spec.OwnerColumn == "" {
		spec.OwnerColumn = DefaultOwnerColumn
	}
	query, keyValue, err := spec.build()
	if err != nil {
		return UpsertResult{}, err
	}

	// A zero-row result with no surviving row means the row was deleted
	// between our insert attempt and the owner lookup; one retry settles it.
	for attempt := 0; attempt < 2; attempt++ {
		res, err := q.ExecContext(ctx, query, spec.Values...)
		if err != nil {
			metrics.UpsertsTotal.WithLabelValues(spec.Table, "error").Inc()
			return UpsertResult{}, errs.Storage("upsert "+spec.Table, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			metrics.UpsertsTotal.WithLabelValues(spec.Table, "error").Inc()
			return UpsertResult{}, errs.Storage("upsert "+spec.Table, err)
		}
		if affected > 0 {
			metrics.UpsertsTotal.WithLabelValues(spec.Table, "applied").Inc()
			return UpsertResult{Applied: true}, nil
		}

		owner, found, err := currentOwner(ctx, q, spec, keyValue)
		if err != nil {
			metrics.UpsertsTotal.WithLabelValues(spec.Table, "error").Inc()
			return UpsertResult{}, err
		}
		if !found {
			continue
		}
		if owner != spec.OwnerID {
			metrics.UpsertsTotal.WithLabelValues(spec.Table, "conflict").Inc()
			return UpsertResult{}, errs.Ownership(spec.Table, fmt.Sprint(keyValue))
		}
		return UpsertResult{}, nil
	}

	metrics.UpsertsTotal.WithLabelValues(spec.Table, "error").Inc()
	return UpsertResult{}, errs.Storage("upsert "+spec.Table, fmt.Errorf("row %v changed concurrently", keyValue))
}

// build validates the spec and renders the statement. It returns the value
// bound to the conflict key for the follow-up owner lookup.
func (s UpsertSpec) build() (string, any, error) {
	if len(s.Columns) == 0 || len(s.Columns) != len(s.Values) {
		return "", nil, errs.Validation("upsert %s: %d columns for %d values", s.Table, len(s.Columns), len(s.Values))
	}
	idents := make([]string, 0, 3+len(s.Columns)+len(s.UpdateColumns))
	idents = append(idents, s.Table, s.ConflictKey, s.OwnerColumn)
	idents = append(idents, s.Columns...)
	idents = append(idents, s.UpdateColumns...)
	for _, ident := range idents {
		if !identRe.MatchString(ident) {
			return "", nil, errs.Validation("upsert: invalid identifier %q", ident)
		}
	}

	keyIdx, ownerIdx := -1, -1
	for i, c := range s.Columns {
		switch c {
		case s.ConflictKey:
			keyIdx = i
		case s.OwnerColumn:
			ownerIdx = i
		}
	}
	if keyIdx < 0 {
		return "", nil, errs.Validation("upsert %s: conflict key %s not in columns", s.Table, s.ConflictKey)
	}
	// When the conflict key is the owner column (singletons) it is its own owner.
	if s.ConflictKey == s.OwnerColumn {
		ownerIdx = keyIdx
	}
	if ownerIdx < 0 {
		return "", nil, errs.Validation("upsert %s: owner column %s not in columns", s.Table, s.OwnerColumn)
	}
	if v, ok := s.Values[ownerIdx].(int64); !ok || v != s.OwnerID {
		return "", nil, errs.Validation("upsert %s: owner value does not match owner id %d", s.Table, s.OwnerID)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(s.Columns)), ", ")
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO ",
		s.Table, strings.Join(s.Columns, ", "), placeholders, s.ConflictKey)

	var sets []string
	for _, c := range s.UpdateColumns {
		if c == s.ConflictKey || c == s.OwnerColumn {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
	}
	if len(sets) == 0 {
		// Nothing to update: re-assert the owner so a same-owner replay still
		// counts as a write and a foreign owner still fails the guard.
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", s.OwnerColumn, s.OwnerColumn))
	}
	fmt.Fprintf(&sb, "UPDATE SET %s WHERE %s.%s = excluded.%s",
		strings.Join(sets, ", "), s.Table, s.OwnerColumn, s.OwnerColumn)

	return sb.String(), s.Values[keyIdx], nil
}

func currentOwner(ctx context.Context, q Querier, s UpsertSpec, key any) (int64, bool, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", s.OwnerColumn, s.Table, s.ConflictKey)
	var owner int64
	err := q.QueryRowContext(ctx, query, key).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errs.Storage("lookup "+s.Table+" owner", err)
	}
	return owner, true, nil
}
