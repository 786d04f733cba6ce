package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/packmind/internal/config"
	"github.com/sells-group/packmind/internal/model"
)

// ErrEmailTaken is returned by CreateUser when the email is already
// registered.
var ErrEmailTaken = eris.New("store: email already registered")

// HistoryRecord is one labeled (or still unlabeled) item/day outcome joined
// with its item, used by the insights aggregation.
type HistoryRecord struct {
	ItemID      int64  `json:"item_id"`
	ItemName    string `json:"item_name"`
	NeededLabel *bool  `json:"needed_label"`
	Packed      bool   `json:"packed"`
}

// Store defines persistence for users, items, day contexts and item
// statuses. Trained model artifacts live in the separate artifact store.
type Store interface {
	// Users
	CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	// Items
	CreateItem(ctx context.Context, item model.Item) (*model.Item, error)
	GetItemByName(ctx context.Context, userID int64, name string) (*model.Item, error)
	ListItems(ctx context.Context, userID int64, activeOnly bool) ([]model.Item, error)
	UpdateItem(ctx context.Context, item model.Item) error

	// Day contexts. Contexts are created lazily on first access to a date;
	// event flags default to false and are set separately.
	GetOrCreateContext(ctx context.Context, userID int64, date time.Time) (*model.DayContext, error)
	GetContextByDate(ctx context.Context, userID int64, date time.Time) (*model.DayContext, error)
	SetContextFlags(ctx context.Context, contextID int64, isHoliday, hasWorkEvent, hasGymEvent bool) error

	// Item statuses. UpsertItemStatus always sets packed and only touches
	// the needed label when one is supplied; MarkPacked additionally
	// defaults an unset needed label to true (the one-click email flow).
	UpsertItemStatus(ctx context.Context, userID, contextID, itemID int64, packed bool, neededLabel *bool) error
	MarkPacked(ctx context.Context, userID, contextID, itemID int64) error
	ListItemStatuses(ctx context.Context, contextID int64) ([]model.ItemStatus, error)

	// Training data: labeled observations only (rows without a needed
	// label never reach training).
	LoadObservations(ctx context.Context, userID int64) ([]model.Observation, error)
	LoadAllObservations(ctx context.Context) ([]model.Observation, error)

	// Insights
	ListStatusHistory(ctx context.Context, userID int64) ([]HistoryRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New creates a Store for the configured driver.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// DateKey normalizes a timestamp to its calendar date in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseDateKey parses a calendar date back to UTC midnight.
func ParseDateKey(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "store: parse date %q", s)
	}
	return t, nil
}
