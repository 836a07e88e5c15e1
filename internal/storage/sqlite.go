package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	_ "modernc.org/sqlite"
)

var validTableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteStorage persists entries in a single SQLite table and scores them in
// process. Vectors are stored as JSON arrays.
type SQLiteStorage struct {
	db    *sql.DB
	table string
	dim   int
}

// NewSQLiteStorage opens (or creates) the database file at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteStorage(path, table string) (*SQLiteStorage, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if table == "" {
		table = DefaultCollection
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid sqlite table name %q", table)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStorage{db: db, table: table}, nil
}

func (s *SQLiteStorage) EnsureCollection(ctx context.Context, dim int) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		id TEXT PRIMARY KEY,
		dim INTEGER NOT NULL,
		vector TEXT NOT NULL,
		content TEXT NOT NULL,
		chapter TEXT NOT NULL,
		topic TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		week INTEGER,
		type TEXT NOT NULL,
		generation TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	s.dim = dim
	return nil
}

func (s *SQLiteStorage) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := validateEntries(entries, s.dim); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO `+s.table+
		`(id,dim,vector,content,chapter,topic,difficulty,week,type,generation) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		vecJSON, err := json.Marshal(e.Vector)
		if err != nil {
			return err
		}
		p := payloadFor(e)
		var week sql.NullInt64
		if p.Week != nil {
			week = sql.NullInt64{Int64: int64(*p.Week), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, e.ID, len(e.Vector), string(vecJSON), p.Content,
			p.Chapter, p.Topic, p.Difficulty, week, p.Type, p.Generation); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStorage) Query(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}
	if s.dim > 0 && len(vector) != s.dim {
		return nil, ErrDimensionMismatch
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id,vector,content,chapter,topic,difficulty,week,type,generation FROM `+
		s.table+` WHERE dim=?`, len(vector))
	if err != nil {
		if missing, _ := s.tableMissing(ctx); missing {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			id, vecStr string
			p          payload
			week       sql.NullInt64
		)
		if err := rows.Scan(&id, &vecStr, &p.Content, &p.Chapter, &p.Topic, &p.Difficulty,
			&week, &p.Type, &p.Generation); err != nil {
			return nil, err
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vecStr), &vec); err != nil || len(vec) != len(vector) {
			continue
		}
		if week.Valid {
			w := int(week.Int64)
			p.Week = &w
		}
		matches = append(matches, Match{
			ID:       id,
			Score:    cosine(vector, vec),
			Content:  p.Content,
			Metadata: p.metadata(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topK(matches, limit), nil
}

func (s *SQLiteStorage) tableMissing(ctx context.Context) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, s.table).Scan(&n)
	return n == 0, err
}

func (s *SQLiteStorage) DeleteStale(ctx context.Context, keepGeneration string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE generation<>?`, keepGeneration)
	return err
}

func (s *SQLiteStorage) Clear(ctx context.Context) error {
	if missing, err := s.tableMissing(ctx); err != nil || missing {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table)
	return err
}

func (s *SQLiteStorage) Count(ctx context.Context) (int, error) {
	if missing, err := s.tableMissing(ctx); err != nil || missing {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+s.table).Scan(&n)
	return n, err
}

func (s *SQLiteStorage) Dimension(ctx context.Context) (int, error) {
	if missing, err := s.tableMissing(ctx); err != nil || missing {
		return 0, err
	}
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dim FROM `+s.table+` LIMIT 1`).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return dim, err
}

func (s *SQLiteStorage) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error { return s.db.Close() }

var _ Index = (*SQLiteStorage)(nil)
