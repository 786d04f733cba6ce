// Package importer loads labeled packing history from CSV or XLSX files.
// Users, items and day contexts referenced by the file are created on the
// fly, so a single spreadsheet can bootstrap a whole demo database.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/packmind/internal/auth"
	"github.com/sells-group/packmind/internal/model"
	"github.com/sells-group/packmind/internal/store"
)

// requiredColumns must all be present in the header row. A weekday column
// is accepted but ignored; the weekday is always recomputed from the date.
var requiredColumns = []string{
	"user_email", "date", "is_holiday", "has_work_event", "has_gym_event",
	"item_name", "item_priority", "item_category", "needed_label", "packed",
}

// defaultPassword is assigned to accounts created by an import. Imported
// users are demo accounts; real users register through the API.
const defaultPassword = "demo123"

// Counts reports what one import run touched.
type Counts struct {
	Rows         int `json:"rows"`
	UsersCreated int `json:"users_created"`
	ItemsCreated int `json:"items_created"`
	Contexts     int `json:"contexts"`
	Statuses     int `json:"statuses"`
}

// Importer writes file rows into the store.
type Importer struct {
	store store.Store
	log   *zap.Logger

	users map[string]*model.User
	items map[string]*model.Item
	hash  string
}

// New creates an Importer.
func New(st store.Store) *Importer {
	return &Importer{
		store: st,
		log:   zap.L().With(zap.String("component", "importer")),
		users: make(map[string]*model.User),
		items: make(map[string]*model.Item),
	}
}

// ImportCSV loads labeled history from a CSV file with a header row.
func (im *Importer) ImportCSV(ctx context.Context, path string) (Counts, error) {
	f, err := os.Open(path)
	if err != nil {
		return Counts{}, eris.Wrap(err, "importer: open csv")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return Counts{}, eris.Wrap(err, "importer: read csv")
	}
	return im.importRows(ctx, records)
}

// ImportXLSX loads labeled history from the first sheet of an XLSX file.
func (im *Importer) ImportXLSX(ctx context.Context, path string) (Counts, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return Counts{}, eris.Wrap(err, "importer: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return Counts{}, eris.New("importer: xlsx has no sheets")
	}

	var records [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	return im.importRows(ctx, records)
}

func (im *Importer) importRows(ctx context.Context, records [][]string) (Counts, error) {
	if len(records) == 0 {
		return Counts{}, eris.New("importer: file is empty")
	}
	columns, err := mapHeader(records[0])
	if err != nil {
		return Counts{}, err
	}

	var counts Counts
	for i, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		if err := im.importRow(ctx, columns, record, &counts); err != nil {
			return counts, eris.Wrapf(err, "importer: row %d", i+2)
		}
		counts.Rows++
	}

	im.log.Info("import complete",
		zap.Int("rows", counts.Rows),
		zap.Int("users_created", counts.UsersCreated),
		zap.Int("items_created", counts.ItemsCreated),
		zap.Int("statuses", counts.Statuses))
	return counts, nil
}

func (im *Importer) importRow(ctx context.Context, columns map[string]int, record []string, counts *Counts) error {
	get := func(name string) string {
		idx := columns[name]
		if idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	user, err := im.getOrCreateUser(ctx, get("user_email"), counts)
	if err != nil {
		return err
	}

	date, err := store.ParseDateKey(get("date"))
	if err != nil {
		return err
	}

	item, err := im.getOrCreateItem(ctx, user.ID, get("item_name"), get("item_priority"), get("item_category"), counts)
	if err != nil {
		return err
	}

	isHoliday, err := parseFlag(get("is_holiday"))
	if err != nil {
		return eris.Wrap(err, "is_holiday")
	}
	hasWork, err := parseFlag(get("has_work_event"))
	if err != nil {
		return eris.Wrap(err, "has_work_event")
	}
	hasGym, err := parseFlag(get("has_gym_event"))
	if err != nil {
		return eris.Wrap(err, "has_gym_event")
	}

	dayCtx, err := im.store.GetOrCreateContext(ctx, user.ID, date)
	if err != nil {
		return err
	}
	if err := im.store.SetContextFlags(ctx, dayCtx.ID, isHoliday, hasWork, hasGym); err != nil {
		return err
	}
	counts.Contexts++

	needed, err := parseFlag(get("needed_label"))
	if err != nil {
		return eris.Wrap(err, "needed_label")
	}
	packed, err := parseFlag(get("packed"))
	if err != nil {
		return eris.Wrap(err, "packed")
	}
	if err := im.store.UpsertItemStatus(ctx, user.ID, dayCtx.ID, item.ID, packed, &needed); err != nil {
		return err
	}
	counts.Statuses++
	return nil
}

func (im *Importer) getOrCreateUser(ctx context.Context, email string, counts *Counts) (*model.User, error) {
	if email == "" {
		return nil, eris.New("user_email is empty")
	}
	if user, ok := im.users[email]; ok {
		return user, nil
	}

	user, err := im.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if im.hash == "" {
			hash, err := auth.HashPassword(defaultPassword)
			if err != nil {
				return nil, err
			}
			im.hash = hash
		}
		user, err = im.store.CreateUser(ctx, email, im.hash)
		if err != nil {
			return nil, err
		}
		counts.UsersCreated++
	}
	im.users[email] = user
	return user, nil
}

func (im *Importer) getOrCreateItem(ctx context.Context, userID int64, name, priority, category string, counts *Counts) (*model.Item, error) {
	if name == "" {
		return nil, eris.New("item_name is empty")
	}
	cacheKey := itemKey(userID, name)
	if item, ok := im.items[cacheKey]; ok {
		return item, nil
	}

	item, err := im.store.GetItemByName(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if item == nil {
		item, err = im.store.CreateItem(ctx, model.Item{
			UserID:   userID,
			Name:     name,
			Priority: model.Priority(strings.ToLower(priority)),
			Category: category,
			Active:   true,
		})
		if err != nil {
			return nil, err
		}
		counts.ItemsCreated++
	}
	im.items[cacheKey] = item
	return item, nil
}

func itemKey(userID int64, name string) string {
	return fmt.Sprintf("%d/%s", userID, strings.ToLower(name))
}

// parseFlag accepts the truthy spellings spreadsheets tend to contain.
func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return true, nil
	case "0", "false", "no", "n", "":
		return false, nil
	default:
		return false, eris.Errorf("importer: unrecognized flag value %q", s)
	}
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// mapHeader validates the header row and returns column name → index.
func mapHeader(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, eris.Errorf("importer: missing required columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}
