// ABOUTME: Tests for the ownership-safe upsert primitive.
// ABOUTME: Covers foreign-owner rejection, idempotent replays, and UpsertSpec validation.
package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/cradle/internal/errs"
	"github.com/harperreed/cradle/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testClock = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.now = func() time.Time { return testClock }
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func feeding(id string, at time.Time) *models.Activity {
	a := models.NewActivity(models.ActivityFeeding).WithTimestamp(at).WithAmount(120, "ml")
	a.ID = id
	return a
}

// rawActivityRow returns every stored column of an activity as text.
func rawActivityRow(t *testing.T, db *DB, id string) []string {
	t.Helper()
	row := db.db.QueryRow(`SELECT id, telegram_id, type, timestamp, COALESCE(end_timestamp, ''),
		COALESCE(sub_type, ''), COALESCE(notes, ''), COALESCE(amount, ''), COALESCE(unit, ''),
		COALESCE(medication_name, ''), COALESCE(metadata, ''), created_at, updated_at
		FROM activities WHERE id = ?`, id)
	cols := make([]string, 13)
	dest := make([]any, len(cols))
	for i := range cols {
		dest[i] = &cols[i]
	}
	require.NoError(t, row.Scan(dest...))
	return cols
}

func TestUpsertRejectsForeignOwner(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	original := feeding("dup", time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)).WithNotes("owner 100")
	require.NoError(t, db.SaveActivity(ctx, 100, original))
	before := rawActivityRow(t, db, "dup")

	db.now = func() time.Time { return testClock.Add(time.Hour) }
	hijack := models.NewActivity(models.ActivityDiaper).WithNotes("owner 200")
	hijack.ID = "dup"
	err := db.SaveActivity(ctx, 200, hijack)
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrOwnershipConflict)
	assert.True(t, errs.IsPermanent(err))

	assert.Equal(t, before, rawActivityRow(t, db, "dup"))

	got, err := db.GetActivity(ctx, 100, "dup")
	require.NoError(t, err)
	assert.Equal(t, "owner 100", *got.Notes)

	_, err = db.GetActivity(ctx, 200, "dup")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUpsertForeignOwnerEveryFamily(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c := models.NewCustomActivity("Vitamin D")
	require.NoError(t, db.SaveCustomActivity(ctx, 100, c))
	err := db.SaveCustomActivity(ctx, 200, &models.CustomActivity{ID: c.ID, Name: "stolen"})
	assert.ErrorIs(t, err, errs.ErrOwnershipConflict)

	g := models.NewGrowthRecord(4.2, 55)
	require.NoError(t, db.SaveGrowthRecord(ctx, 100, g))
	err = db.SaveGrowthRecord(ctx, 200, &models.GrowthRecord{ID: g.ID, Date: "2024-02-01"})
	assert.ErrorIs(t, err, errs.ErrOwnershipConflict)

	s := models.NewSchedule(100, models.ScheduleFeedingReminder, "0 */3 * * *")
	require.NoError(t, db.SaveSchedule(ctx, 100, s))
	stolen := models.NewSchedule(200, models.ScheduleCustom, "0 9 * * *")
	stolen.ID = s.ID
	err = db.SaveSchedule(ctx, 200, stolen)
	assert.ErrorIs(t, err, errs.ErrOwnershipConflict)

	schedules, err := db.ListSchedules(ctx, 100)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, models.ScheduleFeedingReminder, schedules[0].Type)
}

func TestUpsertIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := feeding("a1", time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	a.Metadata = []byte(`{"side": "left"}`)

	require.NoError(t, db.SaveActivity(ctx, 100, a))
	once := rawActivityRow(t, db, "a1")

	require.NoError(t, db.SaveActivity(ctx, 100, a))
	twice := rawActivityRow(t, db, "a1")

	assert.Equal(t, once, twice)

	var count int
	require.NoError(t, db.db.QueryRow(`SELECT COUNT(*) FROM activities`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestUpsertSameOwnerLastWriteWins(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	a := feeding("a1", time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	require.NoError(t, db.SaveActivity(ctx, 100, a))

	a.WithAmount(90, "ml").WithNotes("second device")
	require.NoError(t, db.SaveActivity(ctx, 100, a))

	got, err := db.GetActivity(ctx, 100, "a1")
	require.NoError(t, err)
	assert.Equal(t, 90.0, *got.Amount)
	assert.Equal(t, "second device", *got.Notes)
}

func TestUpsertResult(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	spec := func(owner int64, name string) UpsertSpec {
		return UpsertSpec{
			Table:         "custom_activities",
			Columns:       []string{"id", "telegram_id", "name", "created_at", "updated_at"},
			Values:        []any{"c1", owner, name, "t", "t"},
			ConflictKey:   "id",
			UpdateColumns: []string{"name"},
			OwnerID:       owner,
		}
	}

	res, err := Upsert(ctx, db.db, spec(100, "first"))
	require.NoError(t, err)
	assert.True(t, res.Applied)

	res, err = Upsert(ctx, db.db, spec(100, "second"))
	require.NoError(t, err)
	assert.True(t, res.Applied)

	res, err = Upsert(ctx, db.db, spec(200, "third"))
	assert.ErrorIs(t, err, errs.ErrOwnershipConflict)
	assert.False(t, res.Applied)

	var name string
	require.NoError(t, db.db.QueryRow(`SELECT name FROM custom_activities WHERE id = 'c1'`).Scan(&name))
	assert.Equal(t, "second", name)
}

func TestUpsertWithoutUpdateColumns(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	spec := UpsertSpec{
		Table:       "custom_activities",
		Columns:     []string{"id", "telegram_id", "name", "created_at", "updated_at"},
		Values:      []any{"c1", int64(100), "only", "t", "t"},
		ConflictKey: "id",
		OwnerID:     100,
	}
	_, err := Upsert(ctx, db.db, spec)
	require.NoError(t, err)

	_, err = Upsert(ctx, db.db, spec)
	require.NoError(t, err)

	spec.Values[1] = int64(200)
	spec.OwnerID = 200
	_, err = Upsert(ctx, db.db, spec)
	assert.ErrorIs(t, err, errs.ErrOwnershipConflict)
}

func TestUpsertValidatesSpec(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := func() UpsertSpec {
		return UpsertSpec{
			Table:         "custom_activities",
			Columns:       []string{"id", "telegram_id", "name", "created_at", "updated_at"},
			Values:        []any{"c1", int64(100), "n", "t", "t"},
			ConflictKey:   "id",
			UpdateColumns: []string{"name"},
			OwnerID:       100,
		}
	}

	tests := []struct {
		name   string
		mutate func(*UpsertSpec)
	}{
		{"value count mismatch", func(s *UpsertSpec) { s.Values = s.Values[:2] }},
		{"bad table identifier", func(s *UpsertSpec) { s.Table = "custom_activities; DROP TABLE profiles" }},
		{"bad update column", func(s *UpsertSpec) { s.UpdateColumns = []string{"Name"} }},
		{"conflict key missing", func(s *UpsertSpec) { s.ConflictKey = "other" }},
		{"owner column missing", func(s *UpsertSpec) { s.OwnerColumn = "user_id" }},
		{"owner value mismatch", func(s *UpsertSpec) { s.Values[1] = int64(200) }},
		{"owner value wrong type", func(s *UpsertSpec) { s.Values[1] = 100 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := base()
			tt.mutate(&spec)
			_, err := Upsert(ctx, db.db, spec)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}

	var count int
	require.NoError(t, db.db.QueryRow(`SELECT COUNT(*) FROM custom_activities`).Scan(&count))
	assert.Zero(t, count)
}

func TestUpsertSingletonsAreKeyedByOwner(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.SaveSettings(ctx, 100, []byte(`{"themePreference":"dark"}`))
	require.NoError(t, err)
	_, err = db.SaveSettings(ctx, 200, []byte(`{"themePreference":"light"}`))
	require.NoError(t, err)

	s100, err := db.GetSettings(ctx, 100)
	require.NoError(t, err)
	s200, err := db.GetSettings(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, models.ThemeDark, s100.ThemePreference)
	assert.Equal(t, models.ThemeLight, s200.ThemePreference)
}

func TestUpsertWorksInsideTransaction(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tx, err := db.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, saveActivity(ctx, tx, 100, feeding("tx1", testClock), testClock))
	require.NoError(t, tx.Rollback())

	_, err = db.GetActivity(ctx, 100, "tx1")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
