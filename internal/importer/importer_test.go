package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/packmind/internal/auth"
	"github.com/sells-group/packmind/internal/model"
	"github.com/sells-group/packmind/internal/store"
)

const csvHeader = "user_email,date,is_holiday,has_work_event,has_gym_event,item_name,item_priority,item_category,needed_label,packed"

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.csv")
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportCSV(t *testing.T) {
	st := newTestStore(t)
	im := New(st)

	path := writeCSV(t, csvHeader,
		"alice@example.com,2026-01-05,0,1,0,Laptop,high,work,1,1",
		"alice@example.com,2026-01-05,0,1,0,Umbrella,medium,personal,0,0",
		"alice@example.com,2026-01-06,0,0,1,Laptop,high,work,1,0",
		"bob@example.com,2026-01-05,1,0,0,Sunscreen,low,personal,yes,no",
		"", // blank line is skipped
	)

	counts, err := im.ImportCSV(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 4, counts.Rows)
	assert.Equal(t, 2, counts.UsersCreated)
	assert.Equal(t, 3, counts.ItemsCreated)
	assert.Equal(t, 4, counts.Statuses)

	ctx := context.Background()
	alice, err := st.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, alice)
	assert.True(t, auth.CheckPassword(alice.PasswordHash, "demo123"))

	obs, err := st.LoadObservations(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, obs, 3)

	// Day 2: Laptop needed but not packed.
	forgotten := 0
	for _, o := range obs {
		if o.Forgot() {
			forgotten++
		}
	}
	assert.Equal(t, 1, forgotten)

	bob, err := st.GetUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	bobDay, err := st.GetContextByDate(ctx, bob.ID, mustDate(t, "2026-01-05"))
	require.NoError(t, err)
	require.NotNil(t, bobDay)
	assert.True(t, bobDay.IsHoliday)
	assert.Equal(t, 0, bobDay.Weekday) // recomputed: 2026-01-05 is a Monday
}

func TestImportCSV_Idempotent(t *testing.T) {
	st := newTestStore(t)

	path := writeCSV(t, csvHeader,
		"alice@example.com,2026-01-05,0,1,0,Laptop,high,work,1,1",
	)

	_, err := New(st).ImportCSV(context.Background(), path)
	require.NoError(t, err)
	counts, err := New(st).ImportCSV(context.Background(), path)
	require.NoError(t, err)

	// Second run re-upserts the status but creates nothing.
	assert.Zero(t, counts.UsersCreated)
	assert.Zero(t, counts.ItemsCreated)
	assert.Equal(t, 1, counts.Statuses)

	alice, err := st.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	items, err := st.ListItems(context.Background(), alice.ID, false)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestImportCSV_MissingColumns(t *testing.T) {
	st := newTestStore(t)

	path := writeCSV(t, "user_email,date,item_name", "alice@example.com,2026-01-05,Laptop")

	_, err := New(st).ImportCSV(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
	assert.Contains(t, err.Error(), "needed_label")
}

func TestImportCSV_BadFlagReportsRow(t *testing.T) {
	st := newTestStore(t)

	path := writeCSV(t, csvHeader,
		"alice@example.com,2026-01-05,0,1,0,Laptop,high,work,1,1",
		"alice@example.com,2026-01-06,maybe,0,0,Laptop,high,work,1,1",
	)

	counts, err := New(st).ImportCSV(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
	assert.Equal(t, 1, counts.Rows)
}

func TestImportCSV_BadDate(t *testing.T) {
	st := newTestStore(t)

	path := writeCSV(t, csvHeader,
		"alice@example.com,Jan 5,0,1,0,Laptop,high,work,1,1",
	)

	_, err := New(st).ImportCSV(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse date")
}

func TestImportXLSX(t *testing.T) {
	st := newTestStore(t)

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("history")
	require.NoError(t, err)
	for _, record := range [][]string{
		{"user_email", "date", "is_holiday", "has_work_event", "has_gym_event",
			"item_name", "item_priority", "item_category", "needed_label", "packed"},
		{"alice@example.com", "2026-01-05", "0", "1", "0", "Laptop", "high", "work", "1", "1"},
		{"alice@example.com", "2026-01-06", "0", "0", "0", "Laptop", "high", "work", "0", "0"},
	} {
		row := sheet.AddRow()
		for _, cell := range record {
			row.AddCell().SetString(cell)
		}
	}
	path := filepath.Join(t.TempDir(), "history.xlsx")
	require.NoError(t, f.Save(path))

	counts, err := New(st).ImportXLSX(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Rows)
	assert.Equal(t, 1, counts.UsersCreated)
	assert.Equal(t, 1, counts.ItemsCreated)
}

func TestParseFlag(t *testing.T) {
	for _, s := range []string{"1", "true", "Yes", "Y", "TRUE"} {
		v, err := parseFlag(s)
		require.NoError(t, err, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"0", "false", "No", "n", ""} {
		v, err := parseFlag(s)
		require.NoError(t, err, s)
		assert.False(t, v, s)
	}
	_, err := parseFlag("maybe")
	require.Error(t, err)
}

func TestSeedDefaultItems(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u, err := st.CreateUser(ctx, "alice@example.com", "hash")
	require.NoError(t, err)

	created, err := SeedDefaultItems(ctx, st, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 13, created)

	items, err := st.ListItems(ctx, u.ID, true)
	require.NoError(t, err)
	require.Len(t, items, 13)

	names := make(map[string]model.Priority)
	for _, item := range items {
		names[item.Name] = item.Priority
	}
	assert.Equal(t, model.PriorityHigh, names["ID Card"])
	assert.Equal(t, model.PriorityMedium, names["Umbrella"])
	assert.Equal(t, model.PriorityLow, names["Gym Towel"])

	// Second run creates nothing.
	created, err = SeedDefaultItems(ctx, st, u.ID)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := store.ParseDateKey(s)
	require.NoError(t, err)
	return d
}
