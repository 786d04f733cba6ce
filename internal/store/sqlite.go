package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/packmind/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS items (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id  INTEGER NOT NULL REFERENCES users(id),
	name     TEXT NOT NULL,
	priority TEXT NOT NULL DEFAULT 'medium',
	category TEXT NOT NULL DEFAULT 'general',
	active   INTEGER NOT NULL DEFAULT 1,
	UNIQUE(user_id, name)
);

CREATE TABLE IF NOT EXISTS day_contexts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id        INTEGER NOT NULL REFERENCES users(id),
	date           TEXT NOT NULL,
	weekday        INTEGER NOT NULL,
	is_holiday     INTEGER NOT NULL DEFAULT 0,
	has_work_event INTEGER NOT NULL DEFAULT 0,
	has_gym_event  INTEGER NOT NULL DEFAULT 0,
	UNIQUE(user_id, date)
);

CREATE TABLE IF NOT EXISTS item_statuses (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       INTEGER NOT NULL REFERENCES users(id),
	item_id       INTEGER NOT NULL REFERENCES items(id),
	context_id    INTEGER NOT NULL REFERENCES day_contexts(id),
	needed_label  INTEGER,
	packed        INTEGER NOT NULL DEFAULT 0,
	reminder_sent INTEGER NOT NULL DEFAULT 0,
	feedback      TEXT,
	UNIQUE(context_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_items_user ON items(user_id);
CREATE INDEX IF NOT EXISTS idx_day_contexts_user_date ON day_contexts(user_id, date);
CREATE INDEX IF NOT EXISTS idx_item_statuses_user ON item_statuses(user_id);
CREATE INDEX IF NOT EXISTS idx_item_statuses_context ON item_statuses(context_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Users

func (s *SQLiteStore) CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, created_at) VALUES (?, ?, ?)`,
		email, passwordHash, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return nil, ErrEmailTaken
		}
		return nil, eris.Wrap(err, "sqlite: insert user")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: user id")
	}
	return &model.User{ID: id, Email: email, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email))
	if err != nil && eris.Cause(err) == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list users")
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan user")
		}
		users = append(users, u)
	}
	return users, eris.Wrap(rows.Err(), "sqlite: list users iterate")
}

// Items

func (s *SQLiteStore) CreateItem(ctx context.Context, item model.Item) (*model.Item, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO items (user_id, name, priority, category, active) VALUES (?, ?, ?, ?, ?)`,
		item.UserID, item.Name, string(item.Priority), item.Category, item.Active,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert item %q", item.Name)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: item id")
	}
	item.ID = id
	return &item, nil
}

func (s *SQLiteStore) GetItemByName(ctx context.Context, userID int64, name string) (*model.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, priority, category, active FROM items WHERE user_id = ? AND name = ?`,
		userID, name,
	)
	item, err := scanItem(row)
	if err != nil && eris.Cause(err) == sql.ErrNoRows {
		return nil, nil
	}
	return item, err
}

func (s *SQLiteStore) ListItems(ctx context.Context, userID int64, activeOnly bool) ([]model.Item, error) {
	query := `SELECT id, user_id, name, priority, category, active FROM items WHERE user_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list items")
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list items iterate")
}

func (s *SQLiteStore) UpdateItem(ctx context.Context, item model.Item) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET name = ?, priority = ?, category = ?, active = ? WHERE id = ? AND user_id = ?`,
		item.Name, string(item.Priority), item.Category, item.Active, item.ID, item.UserID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update item %d", item.ID)
	}
	return checkRowsAffected(res, "item")
}

// Day contexts

func (s *SQLiteStore) GetOrCreateContext(ctx context.Context, userID int64, date time.Time) (*model.DayContext, error) {
	existing, err := s.GetContextByDate(ctx, userID, date)
	if err != nil || existing != nil {
		return existing, err
	}

	weekday := model.ContextWeekday(date)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO day_contexts (user_id, date, weekday) VALUES (?, ?, ?)`,
		userID, DateKey(date), weekday,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert context")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: context id")
	}
	day, _ := ParseDateKey(DateKey(date))
	return &model.DayContext{ID: id, UserID: userID, Date: day, Weekday: weekday}, nil
}

func (s *SQLiteStore) GetContextByDate(ctx context.Context, userID int64, date time.Time) (*model.DayContext, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, date, weekday, is_holiday, has_work_event, has_gym_event
		 FROM day_contexts WHERE user_id = ? AND date = ?`,
		userID, DateKey(date),
	)
	dc, err := scanContext(row)
	if err != nil && eris.Cause(err) == sql.ErrNoRows {
		return nil, nil
	}
	return dc, err
}

func (s *SQLiteStore) SetContextFlags(ctx context.Context, contextID int64, isHoliday, hasWorkEvent, hasGymEvent bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE day_contexts SET is_holiday = ?, has_work_event = ?, has_gym_event = ? WHERE id = ?`,
		isHoliday, hasWorkEvent, hasGymEvent, contextID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set context flags %d", contextID)
	}
	return checkRowsAffected(res, "context")
}

// Item statuses

func (s *SQLiteStore) UpsertItemStatus(ctx context.Context, userID, contextID, itemID int64, packed bool, neededLabel *bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO item_statuses (user_id, context_id, item_id, packed, needed_label)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(context_id, item_id) DO UPDATE SET
			packed = excluded.packed,
			needed_label = COALESCE(excluded.needed_label, item_statuses.needed_label)`,
		userID, contextID, itemID, packed, neededLabel,
	)
	return eris.Wrapf(err, "sqlite: upsert status item %d context %d", itemID, contextID)
}

func (s *SQLiteStore) MarkPacked(ctx context.Context, userID, contextID, itemID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO item_statuses (user_id, context_id, item_id, packed, needed_label)
		 VALUES (?, ?, ?, 1, 1)
		 ON CONFLICT(context_id, item_id) DO UPDATE SET
			packed = 1,
			needed_label = COALESCE(item_statuses.needed_label, 1)`,
		userID, contextID, itemID,
	)
	return eris.Wrapf(err, "sqlite: mark packed item %d context %d", itemID, contextID)
}

func (s *SQLiteStore) ListItemStatuses(ctx context.Context, contextID int64) ([]model.ItemStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, item_id, context_id, needed_label, packed, reminder_sent, COALESCE(feedback, '')
		 FROM item_statuses WHERE context_id = ? ORDER BY id`,
		contextID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list statuses")
	}
	defer rows.Close()

	var statuses []model.ItemStatus
	for rows.Next() {
		var st model.ItemStatus
		var needed sql.NullBool
		if err := rows.Scan(&st.ID, &st.UserID, &st.ItemID, &st.ContextID, &needed, &st.Packed, &st.ReminderSent, &st.Feedback); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status")
		}
		if needed.Valid {
			st.NeededLabel = &needed.Bool
		}
		statuses = append(statuses, st)
	}
	return statuses, eris.Wrap(rows.Err(), "sqlite: list statuses iterate")
}

// Training data

const sqliteObservationQuery = `
SELECT c.weekday, c.is_holiday, c.has_work_event, c.has_gym_event,
       i.priority, s.needed_label, s.packed
FROM item_statuses s
JOIN day_contexts c ON c.id = s.context_id
JOIN items i ON i.id = s.item_id
WHERE s.needed_label IS NOT NULL`

func (s *SQLiteStore) LoadObservations(ctx context.Context, userID int64) ([]model.Observation, error) {
	rows, err := s.db.QueryContext(ctx, sqliteObservationQuery+` AND c.user_id = ?`, userID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load observations")
	}
	defer rows.Close()
	return scanObservations(rows)
}

func (s *SQLiteStore) LoadAllObservations(ctx context.Context) ([]model.Observation, error) {
	rows, err := s.db.QueryContext(ctx, sqliteObservationQuery)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load all observations")
	}
	defer rows.Close()
	return scanObservations(rows)
}

// Insights

func (s *SQLiteStore) ListStatusHistory(ctx context.Context, userID int64) ([]HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.id, i.name, s.needed_label, s.packed
		 FROM item_statuses s
		 JOIN items i ON i.id = s.item_id
		 WHERE s.user_id = ? ORDER BY s.id`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list history")
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var r HistoryRecord
		var needed sql.NullBool
		if err := rows.Scan(&r.ItemID, &r.ItemName, &needed, &r.Packed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan history")
		}
		if needed.Valid {
			r.NeededLabel = &needed.Bool
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list history iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found", entity)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUser(row scannable) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan user")
	}
	return &u, nil
}

func scanItem(row scannable) (*model.Item, error) {
	var it model.Item
	var priority string
	if err := row.Scan(&it.ID, &it.UserID, &it.Name, &priority, &it.Category, &it.Active); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan item")
	}
	it.Priority = model.Priority(priority)
	return &it, nil
}

func scanContext(row scannable) (*model.DayContext, error) {
	var dc model.DayContext
	var date string
	if err := row.Scan(&dc.ID, &dc.UserID, &date, &dc.Weekday, &dc.IsHoliday, &dc.HasWorkEvent, &dc.HasGymEvent); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan context")
	}
	day, err := ParseDateKey(date)
	if err != nil {
		return nil, err
	}
	dc.Date = day
	return &dc, nil
}

func scanObservations(rows *sql.Rows) ([]model.Observation, error) {
	var observations []model.Observation
	for rows.Next() {
		var o model.Observation
		var priority string
		if err := rows.Scan(&o.Weekday, &o.IsHoliday, &o.HasWorkEvent, &o.HasGymEvent, &priority, &o.Needed, &o.Packed); err != nil {
			return nil, eris.Wrap(err, "scan observation")
		}
		o.PriorityOrdinal = model.Priority(priority).Ordinal()
		observations = append(observations, o)
	}
	return observations, eris.Wrap(rows.Err(), "observations iterate")
}
