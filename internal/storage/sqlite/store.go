// Package sqlite implements storage.Repository on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sms_crm_agent/internal/model"
	"sms_crm_agent/internal/storage"
	"sms_crm_agent/internal/storage/sqlite/migrations"

	sqlitedrv "modernc.org/sqlite"

	"github.com/google/uuid"
)

// Store is the SQLite-backed CRM repository.
type Store struct {
	db   *sql.DB
	path string
	now  storage.Clock
}

var _ storage.Repository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(c storage.Clock) Option {
	return func(s *Store) { s.now = c }
}

// NewStore opens (creating if needed) the database file at path and applies
// pending migrations.
func NewStore(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path, now: storage.SystemClock}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// ==================== Contacts ====================

// SQLite's lower() only folds ASCII; crm_lower matches the in-memory store.
func init() {
	sqlitedrv.MustRegisterDeterministicScalarFunction("crm_lower", 1, lowerFunc)
}

func lowerFunc(_ *sqlitedrv.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return nil, fmt.Errorf("crm_lower: unsupported argument %T", v)
	}
}

const contactColumns = "id, name, phone, email, birthday, family_members, description, created_at"

func (s *Store) FindContacts(ctx context.Context, fragment string) ([]model.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE instr(crm_lower(name), crm_lower(?)) > 0
		ORDER BY crm_lower(name), rowid
	`, fragment)
	if err != nil {
		return nil, fmt.Errorf("finding contacts: %w", err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (s *Store) GetContactsByIDs(ctx context.Context, ids []string) ([]model.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("getting contacts by id: %w", err)
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (s *Store) InsertContact(ctx context.Context, c model.Contact) (model.Contact, error) {
	if strings.TrimSpace(c.Name) == "" {
		return model.Contact{}, fmt.Errorf("inserting contact: name is required")
	}
	c.ID = uuid.New().String()
	c.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, nullString(c.Phone), nullString(c.Email), nullString(c.Birthday),
		nullString(c.FamilyMembers), nullString(c.Description), c.CreatedAt.UnixNano())
	if err != nil {
		return model.Contact{}, fmt.Errorf("inserting contact: %w", err)
	}
	return c, nil
}

func (s *Store) UpdateContact(ctx context.Context, id string, changes model.ContactDraft) (model.Contact, error) {
	found, err := s.GetContactsByIDs(ctx, []string{id})
	if err != nil {
		return model.Contact{}, err
	}
	if len(found) == 0 {
		return model.Contact{}, fmt.Errorf("updating contact %s: %w", id, storage.ErrNotFound)
	}
	c := storage.ApplyChanges(found[0], changes)

	_, err = s.db.ExecContext(ctx, `
		UPDATE contacts
		SET name = ?, phone = ?, email = ?, birthday = ?, family_members = ?, description = ?
		WHERE id = ?
	`, c.Name, nullString(c.Phone), nullString(c.Email), nullString(c.Birthday),
		nullString(c.FamilyMembers), nullString(c.Description), id)
	if err != nil {
		return model.Contact{}, fmt.Errorf("updating contact %s: %w", id, err)
	}
	return c, nil
}

func (s *Store) DeleteContact(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM contacts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting contact %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("deleting contact %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// ==================== Interactions ====================

func (s *Store) InsertInteraction(ctx context.Context, contactID, note string) (model.Interaction, error) {
	in := model.Interaction{
		ID:        uuid.New().String(),
		ContactID: contactID,
		Note:      note,
		CreatedAt: s.now(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, contact_id, note, created_at)
		VALUES (?, ?, ?, ?)
	`, in.ID, in.ContactID, in.Note, in.CreatedAt.UnixNano())
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.Interaction{}, fmt.Errorf("inserting interaction for %s: %w", contactID, storage.ErrNotFound)
		}
		return model.Interaction{}, fmt.Errorf("inserting interaction: %w", err)
	}
	return in, nil
}

func (s *Store) FindInteractions(ctx context.Context, f model.InteractionFilter) ([]model.Interaction, error) {
	var (
		where []string
		args  []any
	)
	if len(f.ContactIDs) > 0 {
		where = append(where, "contact_id IN ("+placeholders(len(f.ContactIDs))+")")
		for _, id := range f.ContactIDs {
			args = append(args, id)
		}
	}
	if f.Start != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.Start.UnixNano())
	}
	if f.End != nil {
		where = append(where, "created_at <= ?")
		args = append(args, f.End.UnixNano())
	}

	query := "SELECT id, contact_id, note, created_at FROM interactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Sort == model.SortDesc {
		query += " ORDER BY created_at DESC, rowid DESC"
	} else {
		query += " ORDER BY created_at ASC, rowid ASC"
	}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding interactions: %w", err)
	}
	defer rows.Close()

	var out []model.Interaction
	for rows.Next() {
		var (
			in    model.Interaction
			stamp int64
		)
		if err := rows.Scan(&in.ID, &in.ContactID, &in.Note, &stamp); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		in.CreatedAt = time.Unix(0, stamp).UTC()
		out = append(out, in)
	}
	return out, rows.Err()
}

// ==================== Corrections ====================

func (s *Store) AppendCorrection(ctx context.Context, rec model.CorrectionRecord) (model.CorrectionRecord, error) {
	rec.ID = uuid.New().String()
	rec.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classification_corrections (id, message, original_label, correct_label, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, rec.Message, string(rec.OriginalLabel), string(rec.CorrectLabel), rec.CreatedAt.UnixNano())
	if err != nil {
		return model.CorrectionRecord{}, fmt.Errorf("appending correction: %w", err)
	}
	return rec, nil
}

func (s *Store) RecentCorrections(ctx context.Context, limit int) ([]model.CorrectionRecord, error) {
	query := `
		SELECT id, message, original_label, correct_label, created_at
		FROM classification_corrections
		ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing corrections: %w", err)
	}
	defer rows.Close()

	var out []model.CorrectionRecord
	for rows.Next() {
		var (
			rec           model.CorrectionRecord
			original, fix string
			stamp         int64
		)
		if err := rows.Scan(&rec.ID, &rec.Message, &original, &fix, &stamp); err != nil {
			return nil, fmt.Errorf("scanning correction: %w", err)
		}
		rec.OriginalLabel = model.Label(original)
		rec.CorrectLabel = model.Label(fix)
		rec.CreatedAt = time.Unix(0, stamp).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ==================== Helpers ====================

func scanContacts(rows *sql.Rows) ([]model.Contact, error) {
	var out []model.Contact
	for rows.Next() {
		var (
			c                                     model.Contact
			phone, email, birthday, family, descr sql.NullString
			stamp                                 int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &phone, &email, &birthday, &family, &descr, &stamp); err != nil {
			return nil, fmt.Errorf("scanning contact: %w", err)
		}
		c.Phone = phone.String
		c.Email = email.String
		c.Birthday = birthday.String
		c.FamilyMembers = family.String
		c.Description = descr.String
		c.CreatedAt = time.Unix(0, stamp).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isForeignKeyViolation(err error) bool {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		// SQLITE_CONSTRAINT_FOREIGNKEY
		return coded.Code() == 787
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
