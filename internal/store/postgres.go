package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/packmind/internal/db"
	"github.com/sells-group/packmind/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations (the checklist and
// prediction endpoints hit these on every request).
var preparedStatements = map[string]string{
	"get_user":        `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`,
	"get_user_email":  `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
	"list_items":      `SELECT id, user_id, name, priority, category, active FROM items WHERE user_id = $1 ORDER BY id`,
	"get_context":     `SELECT id, user_id, date, weekday, is_holiday, has_work_event, has_gym_event FROM day_contexts WHERE user_id = $1 AND date = $2`,
	"list_statuses":   `SELECT id, user_id, item_id, context_id, needed_label, packed, reminder_sent, COALESCE(feedback, '') FROM item_statuses WHERE context_id = $1 ORDER BY id`,
	"upsert_status":   upsertStatusSQL,
	"mark_packed":     markPackedSQL,
}

const upsertStatusSQL = `INSERT INTO item_statuses (user_id, context_id, item_id, packed, needed_label)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (context_id, item_id) DO UPDATE SET
	packed = EXCLUDED.packed,
	needed_label = COALESCE(EXCLUDED.needed_label, item_statuses.needed_label)`

const markPackedSQL = `INSERT INTO item_statuses (user_id, context_id, item_id, packed, needed_label)
VALUES ($1, $2, $3, TRUE, TRUE)
ON CONFLICT (context_id, item_id) DO UPDATE SET
	packed = TRUE,
	needed_label = COALESCE(item_statuses.needed_label, TRUE)`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS items (
	id       BIGSERIAL PRIMARY KEY,
	user_id  BIGINT NOT NULL REFERENCES users(id),
	name     TEXT NOT NULL,
	priority TEXT NOT NULL DEFAULT 'medium',
	category TEXT NOT NULL DEFAULT 'general',
	active   BOOLEAN NOT NULL DEFAULT TRUE,
	UNIQUE(user_id, name)
);

CREATE TABLE IF NOT EXISTS day_contexts (
	id             BIGSERIAL PRIMARY KEY,
	user_id        BIGINT NOT NULL REFERENCES users(id),
	date           DATE NOT NULL,
	weekday        INT NOT NULL,
	is_holiday     BOOLEAN NOT NULL DEFAULT FALSE,
	has_work_event BOOLEAN NOT NULL DEFAULT FALSE,
	has_gym_event  BOOLEAN NOT NULL DEFAULT FALSE,
	UNIQUE(user_id, date)
);

CREATE TABLE IF NOT EXISTS item_statuses (
	id            BIGSERIAL PRIMARY KEY,
	user_id       BIGINT NOT NULL REFERENCES users(id),
	item_id       BIGINT NOT NULL REFERENCES items(id),
	context_id    BIGINT NOT NULL REFERENCES day_contexts(id),
	needed_label  BOOLEAN,
	packed        BOOLEAN NOT NULL DEFAULT FALSE,
	reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
	feedback      TEXT,
	UNIQUE(context_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_items_user ON items(user_id);
CREATE INDEX IF NOT EXISTS idx_day_contexts_user_date ON day_contexts(user_id, date);
CREATE INDEX IF NOT EXISTS idx_item_statuses_user ON item_statuses(user_id);
CREATE INDEX IF NOT EXISTS idx_item_statuses_context ON item_statuses(context_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Users

func (s *PostgresStore) CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error) {
	u := &model.User{Email: email, PasswordHash: passwordHash}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id, created_at`,
		email, passwordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, eris.Wrap(err, "postgres: insert user")
	}
	return u, nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get user")
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get user by email")
	}
	return &u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, password_hash, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list users")
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan user")
		}
		users = append(users, u)
	}
	return users, eris.Wrap(rows.Err(), "postgres: list users iterate")
}

// Items

func (s *PostgresStore) CreateItem(ctx context.Context, item model.Item) (*model.Item, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO items (user_id, name, priority, category, active) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		item.UserID, item.Name, string(item.Priority), item.Category, item.Active,
	).Scan(&item.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert item %q", item.Name)
	}
	return &item, nil
}

func (s *PostgresStore) GetItemByName(ctx context.Context, userID int64, name string) (*model.Item, error) {
	var it model.Item
	var priority string
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, priority, category, active FROM items WHERE user_id = $1 AND name = $2`,
		userID, name,
	).Scan(&it.ID, &it.UserID, &it.Name, &priority, &it.Category, &it.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get item by name")
	}
	it.Priority = model.Priority(priority)
	return &it, nil
}

func (s *PostgresStore) ListItems(ctx context.Context, userID int64, activeOnly bool) ([]model.Item, error) {
	query := `SELECT id, user_id, name, priority, category, active FROM items WHERE user_id = $1`
	if activeOnly {
		query += ` AND active = TRUE`
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list items")
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var it model.Item
		var priority string
		if err := rows.Scan(&it.ID, &it.UserID, &it.Name, &priority, &it.Category, &it.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan item")
		}
		it.Priority = model.Priority(priority)
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list items iterate")
}

func (s *PostgresStore) UpdateItem(ctx context.Context, item model.Item) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE items SET name = $1, priority = $2, category = $3, active = $4 WHERE id = $5 AND user_id = $6`,
		item.Name, string(item.Priority), item.Category, item.Active, item.ID, item.UserID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update item %d", item.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.New("item not found")
	}
	return nil
}

// Day contexts

func (s *PostgresStore) GetOrCreateContext(ctx context.Context, userID int64, date time.Time) (*model.DayContext, error) {
	existing, err := s.GetContextByDate(ctx, userID, date)
	if err != nil || existing != nil {
		return existing, err
	}

	day, _ := ParseDateKey(DateKey(date))
	dc := &model.DayContext{UserID: userID, Date: day, Weekday: model.ContextWeekday(date)}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO day_contexts (user_id, date, weekday) VALUES ($1, $2, $3) RETURNING id`,
		userID, DateKey(date), dc.Weekday,
	).Scan(&dc.ID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert context")
	}
	return dc, nil
}

func (s *PostgresStore) GetContextByDate(ctx context.Context, userID int64, date time.Time) (*model.DayContext, error) {
	var dc model.DayContext
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, date, weekday, is_holiday, has_work_event, has_gym_event
		 FROM day_contexts WHERE user_id = $1 AND date = $2`,
		userID, DateKey(date),
	).Scan(&dc.ID, &dc.UserID, &dc.Date, &dc.Weekday, &dc.IsHoliday, &dc.HasWorkEvent, &dc.HasGymEvent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get context")
	}
	return &dc, nil
}

func (s *PostgresStore) SetContextFlags(ctx context.Context, contextID int64, isHoliday, hasWorkEvent, hasGymEvent bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE day_contexts SET is_holiday = $1, has_work_event = $2, has_gym_event = $3 WHERE id = $4`,
		isHoliday, hasWorkEvent, hasGymEvent, contextID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set context flags %d", contextID)
	}
	if tag.RowsAffected() == 0 {
		return eris.New("context not found")
	}
	return nil
}

// Item statuses

func (s *PostgresStore) UpsertItemStatus(ctx context.Context, userID, contextID, itemID int64, packed bool, neededLabel *bool) error {
	_, err := s.pool.Exec(ctx, upsertStatusSQL, userID, contextID, itemID, packed, neededLabel)
	return eris.Wrapf(err, "postgres: upsert status item %d context %d", itemID, contextID)
}

func (s *PostgresStore) MarkPacked(ctx context.Context, userID, contextID, itemID int64) error {
	_, err := s.pool.Exec(ctx, markPackedSQL, userID, contextID, itemID)
	return eris.Wrapf(err, "postgres: mark packed item %d context %d", itemID, contextID)
}

func (s *PostgresStore) ListItemStatuses(ctx context.Context, contextID int64) ([]model.ItemStatus, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, item_id, context_id, needed_label, packed, reminder_sent, COALESCE(feedback, '')
		 FROM item_statuses WHERE context_id = $1 ORDER BY id`,
		contextID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list statuses")
	}
	defer rows.Close()

	var statuses []model.ItemStatus
	for rows.Next() {
		var st model.ItemStatus
		if err := rows.Scan(&st.ID, &st.UserID, &st.ItemID, &st.ContextID, &st.NeededLabel, &st.Packed, &st.ReminderSent, &st.Feedback); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status")
		}
		statuses = append(statuses, st)
	}
	return statuses, eris.Wrap(rows.Err(), "postgres: list statuses iterate")
}

// Training data

const postgresObservationQuery = `
SELECT c.weekday, c.is_holiday::int, c.has_work_event::int, c.has_gym_event::int,
       i.priority, s.needed_label, s.packed
FROM item_statuses s
JOIN day_contexts c ON c.id = s.context_id
JOIN items i ON i.id = s.item_id
WHERE s.needed_label IS NOT NULL`

func (s *PostgresStore) LoadObservations(ctx context.Context, userID int64) ([]model.Observation, error) {
	rows, err := s.pool.Query(ctx, postgresObservationQuery+` AND c.user_id = $1`, userID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load observations")
	}
	defer rows.Close()
	return scanPgObservations(rows)
}

func (s *PostgresStore) LoadAllObservations(ctx context.Context) ([]model.Observation, error) {
	rows, err := s.pool.Query(ctx, postgresObservationQuery)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load all observations")
	}
	defer rows.Close()
	return scanPgObservations(rows)
}

func scanPgObservations(rows pgx.Rows) ([]model.Observation, error) {
	var observations []model.Observation
	for rows.Next() {
		var o model.Observation
		var priority string
		if err := rows.Scan(&o.Weekday, &o.IsHoliday, &o.HasWorkEvent, &o.HasGymEvent, &priority, &o.Needed, &o.Packed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		o.PriorityOrdinal = model.Priority(priority).Ordinal()
		observations = append(observations, o)
	}
	return observations, eris.Wrap(rows.Err(), "postgres: observations iterate")
}

// Insights

func (s *PostgresStore) ListStatusHistory(ctx context.Context, userID int64) ([]HistoryRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT i.id, i.name, s.needed_label, s.packed
		 FROM item_statuses s
		 JOIN items i ON i.id = s.item_id
		 WHERE s.user_id = $1 ORDER BY s.id`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list history")
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var r HistoryRecord
		if err := rows.Scan(&r.ItemID, &r.ItemName, &r.NeededLabel, &r.Packed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan history")
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list history iterate")
}
