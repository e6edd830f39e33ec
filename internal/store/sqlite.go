package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"patchbay/internal/entities/bundle"

	"github.com/pocketbase/dbx"
	_ "modernc.org/sqlite"
)

const sourcesTable = "bundle_sources"

const schema = `
CREATE TABLE IF NOT EXISTS bundle_sources (
	uid          INTEGER PRIMARY KEY,
	name         TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	kind         TEXT NOT NULL,
	url          TEXT NOT NULL DEFAULT '',
	auto_update  INTEGER NOT NULL DEFAULT 0,
	version_hash TEXT NOT NULL DEFAULT '',
	sort_order   INTEGER NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bundle_sources_sort ON bundle_sources (sort_order);
`

// SQLite is the durable Gateway implementation.
type SQLite struct {
	db *dbx.DB
}

// OpenSQLite opens (and bootstraps) the record database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := dbx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening record store: %w", err)
	}
	if _, err := db.NewQuery(schema).Execute(); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping record store: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) ListAll() ([]bundle.Source, error) {
	var records []bundle.Source
	err := s.db.Select().From(sourcesTable).OrderBy("sort_order ASC").All(&records)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLite) GetProperties(uid int64) (*bundle.Source, error) {
	var record bundle.Source
	err := s.db.Select().From(sourcesTable).Where(dbx.HashExp{"uid": uid}).One(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *SQLite) Upsert(record bundle.Source) error {
	return upsertRecord(s.db, record)
}

func (s *SQLite) UpsertAll(records []bundle.Source) error {
	return s.db.Transactional(func(tx *dbx.Tx) error {
		for _, record := range records {
			if err := upsertRecord(tx, record); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertRecord(db dbx.Builder, record bundle.Source) error {
	if record.UpdatedAt == 0 {
		record.UpdatedAt = time.Now().UnixMilli()
	}
	params := dbx.Params{
		"uid":          record.UID,
		"name":         record.Name,
		"display_name": record.DisplayName,
		"kind":         string(record.Kind),
		"url":          record.URL,
		"auto_update":  record.AutoUpdate,
		"version_hash": record.VersionHash,
		"sort_order":   record.SortOrder,
		"created_at":   record.CreatedAt,
		"updated_at":   record.UpdatedAt,
	}
	query := `INSERT INTO bundle_sources (uid, name, display_name, kind, url, auto_update, version_hash, sort_order, created_at, updated_at)
VALUES ({:uid}, {:name}, {:display_name}, {:kind}, {:url}, {:auto_update}, {:version_hash}, {:sort_order}, {:created_at}, {:updated_at})
ON CONFLICT(uid) DO UPDATE SET name = excluded.name, display_name = excluded.display_name, url = excluded.url, auto_update = excluded.auto_update, version_hash = excluded.version_hash, sort_order = excluded.sort_order, updated_at = excluded.updated_at`
	_, err := db.NewQuery(query).Bind(params).Execute()
	return err
}

func (s *SQLite) Remove(uid int64) error {
	_, err := s.db.Delete(sourcesTable, dbx.HashExp{"uid": uid}).Execute()
	return err
}

func (s *SQLite) UpdateSortOrder(uid int64, index int) error {
	_, err := s.db.Update(sourcesTable,
		dbx.Params{"sort_order": index, "updated_at": time.Now().UnixMilli()},
		dbx.HashExp{"uid": uid},
	).Execute()
	return err
}

func (s *SQLite) MaxSortOrder() (int, bool, error) {
	var max sql.NullInt64
	err := s.db.NewQuery("SELECT MAX(sort_order) FROM bundle_sources").Row(&max)
	if err != nil {
		return 0, false, err
	}
	if !max.Valid {
		return 0, false, nil
	}
	return int(max.Int64), true, nil
}
