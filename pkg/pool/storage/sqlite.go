package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store using SQLite. It runs in WAL mode with a
// single writer connection and checkpoints the log periodically, which is
// plenty for a pool that sees a few writes per request.
type SQLiteStore struct {
	db                 *sql.DB
	dbPath             string
	checkpointInterval time.Duration
	done               chan struct{}
	mu                 sync.RWMutex
	closeOnce          sync.Once

	// Pre-compiled statements for the hot paths
	insertStmt       *sql.Stmt
	getStmt          *sql.Stmt
	listActiveStmt   *sql.Stmt
	statusStmt       *sql.Stmt
	statusPrefixStmt *sql.Stmt
	tokensStmt       *sql.Stmt
	quotaStmt        *sql.Stmt
	touchStmt        *sql.Stmt
	deleteStaleStmt  *sql.Stmt
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore opens (or creates) the credential database with default
// settings.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteConfig{DBPath: dbPath})
}

// NewSQLiteStoreWithConfig opens the credential database with custom
// configuration.
func NewSQLiteStoreWithConfig(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	// modernc's driver takes pragmas as _pragma=name(value) pairs; the
	// checkpoint loop depends on WAL actually being on.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:                 db,
		dbPath:             cfg.DBPath,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go store.checkpointLoop()

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS credentials (
		email TEXT PRIMARY KEY,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		last_used INTEGER,
		last_refresh INTEGER,
		use_count INTEGER NOT NULL DEFAULT 0,
		quota_limit INTEGER NOT NULL DEFAULT 0,
		quota_used INTEGER NOT NULL DEFAULT 0,
		quota_unlimited INTEGER NOT NULL DEFAULT 0,
		quota_next_refresh INTEGER,
		quota_refresh_interval TEXT NOT NULL DEFAULT '',
		quota_checked_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_credentials_status ON credentials(status);
	CREATE INDEX IF NOT EXISTS idx_credentials_last_used ON credentials(last_used);
	`

	_, err := s.db.Exec(schema)
	return err
}

const recordColumns = `email, access_token, refresh_token, status,
	created_at, updated_at, last_used, last_refresh, use_count,
	quota_limit, quota_used, quota_unlimited, quota_next_refresh,
	quota_refresh_interval, quota_checked_at`

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO credentials (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.getStmt, err = s.db.Prepare(`
		SELECT ` + recordColumns + ` FROM credentials WHERE email = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	// Never-used rows (last_used NULL) sort first, then oldest use first.
	s.listActiveStmt, err = s.db.Prepare(`
		SELECT ` + recordColumns + ` FROM credentials
		WHERE status = 'active'
		ORDER BY (last_used IS NOT NULL), COALESCE(last_used, created_at) ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list-active statement: %w", err)
	}

	s.statusStmt, err = s.db.Prepare(`
		UPDATE credentials SET status = ?, updated_at = ? WHERE email = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare status statement: %w", err)
	}

	s.statusPrefixStmt, err = s.db.Prepare(`
		UPDATE credentials SET status = ?, updated_at = ?
		WHERE access_token LIKE ? ESCAPE '\'
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare status-prefix statement: %w", err)
	}

	s.tokensStmt, err = s.db.Prepare(`
		UPDATE credentials
		SET access_token = ?, refresh_token = ?, last_refresh = ?, updated_at = ?
		WHERE email = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare tokens statement: %w", err)
	}

	s.quotaStmt, err = s.db.Prepare(`
		UPDATE credentials
		SET quota_limit = ?, quota_used = ?, quota_unlimited = ?,
			quota_next_refresh = ?, quota_refresh_interval = ?,
			quota_checked_at = ?, updated_at = ?
		WHERE email = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare quota statement: %w", err)
	}

	s.touchStmt, err = s.db.Prepare(`
		UPDATE credentials
		SET last_used = ?, use_count = use_count + 1, updated_at = ?
		WHERE email = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare touch statement: %w", err)
	}

	s.deleteStaleStmt, err = s.db.Prepare(`
		DELETE FROM credentials WHERE status = ? AND updated_at < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete-stale statement: %w", err)
	}

	return nil
}

// Insert adds a credential.
func (s *SQLiteStore) Insert(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.Email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if rec.Status == "" {
		rec.Status = StatusActive
	}
	if !ValidStatus(rec.Status) {
		return fmt.Errorf("invalid status %q", rec.Status)
	}

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	quota := rec.Quota
	if quota == nil {
		quota = &QuotaSnapshot{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.insertStmt.ExecContext(ctx,
		rec.Email,
		rec.AccessToken,
		rec.RefreshToken,
		rec.Status,
		rec.CreatedAt.Unix(),
		rec.UpdatedAt.Unix(),
		nullableUnix(rec.LastUsed),
		nullableUnix(rec.LastRefresh),
		rec.UseCount,
		quota.Limit,
		quota.Used,
		boolToInt(quota.Unlimited),
		nullableTime(quota.NextRefreshAt),
		quota.RefreshInterval,
		nullableTime(quota.CheckedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return &ConflictError{Email: rec.Email}
		}
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	return nil
}

// Get returns a credential by email, or nil if absent.
func (s *SQLiteStore) Get(ctx context.Context, email string) (*Record, error) {
	if email == "" {
		return nil, fmt.Errorf("email cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := scanRecord(s.getStmt.QueryRowContext(ctx, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return rec, nil
}

// ListActive returns active credentials in least-recently-used order.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.listActiveStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active credentials: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// List returns credentials filtered by status, paged.
func (s *SQLiteStore) List(ctx context.Context, status string, limit, offset int) ([]*Record, error) {
	if status != "" && !ValidStatus(status) {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + recordColumns + ` FROM credentials`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

// UpdateStatus transitions a credential by exact email.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, email, status string) (int64, error) {
	if !ValidStatus(status) {
		return 0, fmt.Errorf("invalid status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.statusStmt.ExecContext(ctx, status, time.Now().Unix(), email)
	if err != nil {
		return 0, fmt.Errorf("failed to update status: %w", err)
	}
	return res.RowsAffected()
}

// UpdateStatusByTokenPrefix transitions credentials whose access token
// starts with prefix.
func (s *SQLiteStore) UpdateStatusByTokenPrefix(ctx context.Context, prefix, status string) (int64, error) {
	if !ValidStatus(status) {
		return 0, fmt.Errorf("invalid status %q", status)
	}
	if prefix == "" {
		return 0, fmt.Errorf("token prefix cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.statusPrefixStmt.ExecContext(ctx, status, time.Now().Unix(), escapeLike(prefix)+"%")
	if err != nil {
		return 0, fmt.Errorf("failed to update status by token prefix: %w", err)
	}
	return res.RowsAffected()
}

// UpdateTokens stores a refreshed token pair.
func (s *SQLiteStore) UpdateTokens(ctx context.Context, email, accessToken, refreshToken string, refreshedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.tokensStmt.ExecContext(ctx,
		accessToken, refreshToken, refreshedAt.Unix(), time.Now().Unix(), email)
	if err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Email: email}
	}
	return nil
}

// UpdateQuota stores a fresh usage snapshot.
func (s *SQLiteStore) UpdateQuota(ctx context.Context, email string, quota *QuotaSnapshot) error {
	if quota == nil {
		return fmt.Errorf("quota cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.quotaStmt.ExecContext(ctx,
		quota.Limit, quota.Used, boolToInt(quota.Unlimited),
		nullableTime(quota.NextRefreshAt), quota.RefreshInterval,
		nullableTime(quota.CheckedAt), time.Now().Unix(), email)
	if err != nil {
		return fmt.Errorf("failed to update quota: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Email: email}
	}
	return nil
}

// Touch records a use.
func (s *SQLiteStore) Touch(ctx context.Context, email string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.touchStmt.ExecContext(ctx, usedAt.Unix(), time.Now().Unix(), email)
	if err != nil {
		return fmt.Errorf("failed to touch credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Email: email}
	}
	return nil
}

// DeleteStale removes credentials in status older than cutoff.
func (s *SQLiteStore) DeleteStale(ctx context.Context, status string, cutoff time.Time) (int64, error) {
	if !ValidStatus(status) {
		return 0, fmt.Errorf("invalid status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.deleteStaleStmt.ExecContext(ctx, status, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale credentials: %w", err)
	}
	return res.RowsAffected()
}

// CountByStatus returns credential counts keyed by status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM credentials GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count credentials: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Close stops the checkpoint loop and closes the database.
func (s *SQLiteStore) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		close(s.done)

		// Final checkpoint before closing
		s.mu.Lock()
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		s.mu.Unlock()

		closeErr = s.db.Close()
	})
	return closeErr
}

// checkpointLoop periodically checkpoints the WAL to bound its size.
func (s *SQLiteStore) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec          Record
		createdAt    int64
		updatedAt    int64
		lastUsed     sql.NullInt64
		lastRefresh  sql.NullInt64
		unlimited    int
		nextRefresh  sql.NullInt64
		quotaChecked sql.NullInt64
		quota        QuotaSnapshot
	)

	err := row.Scan(
		&rec.Email, &rec.AccessToken, &rec.RefreshToken, &rec.Status,
		&createdAt, &updatedAt, &lastUsed, &lastRefresh, &rec.UseCount,
		&quota.Limit, &quota.Used, &unlimited, &nextRefresh,
		&quota.RefreshInterval, &quotaChecked,
	)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	rec.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if lastUsed.Valid {
		t := time.Unix(lastUsed.Int64, 0).UTC()
		rec.LastUsed = &t
	}
	if lastRefresh.Valid {
		t := time.Unix(lastRefresh.Int64, 0).UTC()
		rec.LastRefresh = &t
	}

	quota.Unlimited = unlimited != 0
	if nextRefresh.Valid {
		quota.NextRefreshAt = time.Unix(nextRefresh.Int64, 0).UTC()
	}
	if quotaChecked.Valid {
		quota.CheckedAt = time.Unix(quotaChecked.Int64, 0).UTC()
	}
	rec.Quota = &quota

	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
