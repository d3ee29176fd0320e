// internal/store/store.go
// Package: store
//
// Package store persists run summary tables as a single SQLite file. Writes go
// to a temporary file next to the destination and are renamed into place, so
// readers see either the previous artifact or the new one.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/mwiater/psdsummary/internal/summary"
)

// SchemaVersion is written to the meta table and checked on load.
const SchemaVersion = 1

var (
	ErrWriteInProgress = errors.New("summary write in progress")
	ErrSchema          = errors.New("unsupported summary schema")
	ErrCorrupt         = errors.New("summary file is not a complete table")
)

const schema = `
	CREATE TABLE summary (
		channel TEXT NOT NULL,
		time INTEGER NOT NULL,
		freq REAL NOT NULL,
		status INTEGER NOT NULL,
		median REAL,
		ci50_lo REAL,
		ci50_hi REAL,
		ci90_lo REAL,
		ci90_hi REAL,
		PRIMARY KEY (channel, time, freq)
	);
	CREATE TABLE meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
`

// Meta is the descriptive part of a stored summary.
type Meta struct {
	Run     string
	Schema  int
	Created time.Time
	Missing []int64
}

// Store saves tables through Save and logs each write.
type Store struct {
	Log *zerolog.Logger
}

// Save implements summary.Saver.
func (s Store) Save(ctx context.Context, path string, t *summary.Table) error {
	start := time.Now()
	if err := Save(ctx, path, t); err != nil {
		return err
	}
	if s.Log != nil {
		s.Log.Info().Str("run", t.Run).Str("path", path).Int("records", len(t.Records)).
			Dur("elapsed", time.Since(start)).Msg("summary saved")
	}
	return nil
}

// Exists reports whether a summary artifact is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Save writes t to path. The previous file, if any, is replaced only after
// the new one is complete.
func Save(ctx context.Context, path string, t *summary.Table) error {
	if t == nil {
		return errors.New("save summary: nil table")
	}
	if len(t.Records) != t.Len() {
		return fmt.Errorf("save summary %s: %d records for a %dx%dx%d table: %w",
			t.Run, len(t.Records), len(t.Channels), len(t.Times), len(t.Freqs), ErrCorrupt)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create summary dir: %w", err)
	}
	release, err := acquire(path)
	if err != nil {
		return err
	}
	defer release()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	if err := writeDB(ctx, tmpName, t); err != nil {
		return fmt.Errorf("write summary %s: %w", t.Run, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	return nil
}

func writeDB(ctx context.Context, name string, t *summary.Table) error {
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO summary (channel, time, freq, status, median, ci50_lo, ci50_hi, ci90_lo, ci90_hi)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range t.Records {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		ok := !r.Missing()
		if _, err := stmt.ExecContext(ctx, r.Channel, r.Time, r.Freq, int(r.Status),
			nullable(r.Median, ok), nullable(r.CI50Lo, ok), nullable(r.CI50Hi, ok),
			nullable(r.CI90Lo, ok), nullable(r.CI90Hi, ok)); err != nil {
			return fmt.Errorf("insert %s/%d/%g: %w", r.Channel, r.Time, r.Freq, err)
		}
	}

	meta := map[string]string{
		"run":            t.Run,
		"schema_version": strconv.Itoa(SchemaVersion),
		"created":        t.Created.UTC().Format(time.RFC3339Nano),
		"missing_times":  joinTimes(t.Missing),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func nullable(v float64, ok bool) any {
	if !ok || math.IsNaN(v) {
		return nil
	}
	return v
}

func joinTimes(ts []int64) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = strconv.FormatInt(t, 10)
	}
	return strings.Join(parts, ",")
}

func splitTimes(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	var out []int64
	for _, p := range strings.Split(s, ",") {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("missing time %q: %w", p, ErrCorrupt)
		}
		out = append(out, v)
	}
	return out, nil
}

// openRead opens path read-only. A missing file while a live writer holds the
// lock is ErrWriteInProgress.
func openRead(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && lockHeld(path) {
			return nil, fmt.Errorf("%s: %w", path, ErrWriteInProgress)
		}
		return nil, fmt.Errorf("open summary: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// ReadMeta returns the meta table of the summary at path.
func ReadMeta(ctx context.Context, path string) (Meta, error) {
	db, err := openRead(path)
	if err != nil {
		return Meta{}, err
	}
	defer db.Close()
	return readMeta(ctx, db)
}

func readMeta(ctx context.Context, db *sql.DB) (Meta, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, fmt.Errorf("query meta: %w", err)
	}
	defer rows.Close()
	kv := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, fmt.Errorf("scan meta: %w", err)
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return Meta{}, err
	}

	var m Meta
	m.Run = kv["run"]
	m.Schema, err = strconv.Atoi(kv["schema_version"])
	if err != nil || m.Schema != SchemaVersion {
		return Meta{}, fmt.Errorf("schema version %q: %w", kv["schema_version"], ErrSchema)
	}
	if c := kv["created"]; c != "" {
		if m.Created, err = time.Parse(time.RFC3339Nano, c); err != nil {
			return Meta{}, fmt.Errorf("created %q: %w", c, ErrCorrupt)
		}
	}
	if m.Missing, err = splitTimes(kv["missing_times"]); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// Load reads the summary at path back into a table equal to the one saved.
func Load(ctx context.Context, path string) (*summary.Table, error) {
	db, err := openRead(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	meta, err := readMeta(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT channel, time, freq, status, median, ci50_lo, ci50_hi, ci90_lo, ci90_hi
		FROM summary
		ORDER BY channel, time, freq
	`)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var records []summary.Record
	channels := make(map[string]struct{})
	times := make(map[int64]struct{})
	freqs := make(map[float64]struct{})
	for rows.Next() {
		var r summary.Record
		var status int
		var med, lo50, hi50, lo90, hi90 sql.NullFloat64
		if err := rows.Scan(&r.Channel, &r.Time, &r.Freq, &status,
			&med, &lo50, &hi50, &lo90, &hi90); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		r.Status = summary.Status(status)
		if !r.Missing() {
			r.Stats = summary.Stats{
				Median: orNaN(med),
				CI50Lo: orNaN(lo50), CI50Hi: orNaN(hi50),
				CI90Lo: orNaN(lo90), CI90Hi: orNaN(hi90),
			}
		}
		channels[r.Channel] = struct{}{}
		times[r.Time] = struct{}{}
		freqs[r.Freq] = struct{}{}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}

	t := &summary.Table{
		Run:      meta.Run,
		Channels: sortedKeys(channels),
		Times:    sortedKeys(times),
		Freqs:    sortedKeys(freqs),
		Missing:  meta.Missing,
		Created:  meta.Created,
	}
	if len(records) != t.Len() {
		return nil, fmt.Errorf("load %s: %d rows for a %dx%dx%d table: %w",
			path, len(records), len(t.Channels), len(t.Times), len(t.Freqs), ErrCorrupt)
	}
	// ORDER BY matches the table layout, so a rectangular result is already
	// in index order.
	t.Records = records
	return t, nil
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func sortedKeys[K int64 | float64 | string](m map[K]struct{}) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
