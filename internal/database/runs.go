package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TobiSchelling/kwscout/internal/aggregate"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("run not found")

const timeLayout = time.RFC3339Nano

// SaveRun stores a run with its sources and rows in one transaction.
// Saving an existing ID replaces it.
func (db *DB) SaveRun(run *Run) error {
	if run.ID == "" {
		return errors.New("run has no ID")
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteRunTx(tx, run.ID); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`INSERT INTO runs (id, mode, query, location, own_url, language, keyword_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Mode, run.Query, run.Location, run.OwnURL, run.Language,
		len(run.Rows), run.CreatedAt.UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for _, s := range run.Sources {
		entities, err := json.Marshal(s.Entities)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO run_sources
			(run_id, slot, url, title, rank, status, error, word_count, keyword_count, entities)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, s.Slot, s.URL, s.Title, nullInt(s.Rank), s.Status, s.Error,
			s.WordCount, s.KeywordCount, string(entities),
		); err != nil {
			return fmt.Errorf("inserting source %d: %w", s.Slot, err)
		}
	}

	stmt, err := tx.Prepare(
		`INSERT INTO run_keywords
		(run_id, position, phrase, score, rank, occurrences, total_occurrences, max_occurrence, max_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range run.Rows {
		occ, err := json.Marshal(r.Occurrences)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(
			run.ID, i, r.Phrase, r.Score, nullInt(r.Rank), string(occ),
			r.TotalOccurrences, r.MaxOccurrence, r.MaxSource,
		); err != nil {
			return fmt.Errorf("inserting keyword %q: %w", r.Phrase, err)
		}
	}

	return tx.Commit()
}

// GetRun loads a run with its sources and rows in saved order.
func (db *DB) GetRun(id string) (*Run, error) {
	var run Run
	var query, location, ownURL, language sql.NullString
	var createdAt string
	err := db.conn.QueryRow(
		`SELECT id, mode, query, location, own_url, language, created_at FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Mode, &query, &location, &ownURL, &language, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	run.Query = query.String
	run.Location = location.String
	run.OwnURL = ownURL.String
	run.Language = language.String
	run.CreatedAt = parseTime(createdAt)

	if run.Sources, err = db.getSources(id); err != nil {
		return nil, err
	}
	if run.Rows, err = db.getRows(id); err != nil {
		return nil, err
	}
	return &run, nil
}

func (db *DB) getSources(runID string) ([]Source, error) {
	rows, err := db.conn.Query(
		`SELECT slot, url, title, rank, status, error, word_count, keyword_count, entities
		FROM run_sources WHERE run_id = ? ORDER BY slot`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		var url, title, errText, entities sql.NullString
		var rank sql.NullInt64
		if err := rows.Scan(&s.Slot, &url, &title, &rank, &s.Status, &errText,
			&s.WordCount, &s.KeywordCount, &entities); err != nil {
			return nil, err
		}
		s.URL = url.String
		s.Title = title.String
		s.Error = errText.String
		s.Rank = intPtr(rank)
		if entities.Valid && entities.String != "" {
			if err := json.Unmarshal([]byte(entities.String), &s.Entities); err != nil {
				return nil, fmt.Errorf("decoding entities for slot %d: %w", s.Slot, err)
			}
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

func (db *DB) getRows(runID string) ([]aggregate.Row, error) {
	rows, err := db.conn.Query(
		`SELECT phrase, score, rank, occurrences, total_occurrences, max_occurrence, max_source
		FROM run_keywords WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []aggregate.Row{}
	for rows.Next() {
		var r aggregate.Row
		var rank sql.NullInt64
		var occ string
		var maxSource sql.NullString
		if err := rows.Scan(&r.Phrase, &r.Score, &rank, &occ,
			&r.TotalOccurrences, &r.MaxOccurrence, &maxSource); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(occ), &r.Occurrences); err != nil {
			return nil, fmt.Errorf("decoding occurrences for %q: %w", r.Phrase, err)
		}
		r.Rank = intPtr(rank)
		r.MaxSource = maxSource.String
		r.MeanTop3 = aggregate.MeanTop3(r.Occurrences)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListRuns returns the most recent runs first. A limit of 0 returns all.
func (db *DB) ListRuns(limit int) ([]RunSummary, error) {
	q := `SELECT id, mode, query, own_url, language, keyword_count, created_at
		FROM runs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var query, ownURL, language sql.NullString
		var createdAt string
		if err := rows.Scan(&s.ID, &s.Mode, &query, &ownURL, &language, &s.KeywordCount, &createdAt); err != nil {
			return nil, err
		}
		s.Query = query.String
		s.OwnURL = ownURL.String
		s.Language = language.String
		s.CreatedAt = parseTime(createdAt)
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and everything attached to it.
func (db *DB) DeleteRun(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(*) FROM runs WHERE id = ?", id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrRunNotFound
	}
	if err := deleteRunTx(tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteRunTx(tx *sql.Tx, id string) error {
	for _, q := range []string{
		"DELETE FROM run_keywords WHERE run_id = ?",
		"DELETE FROM run_sources WHERE run_id = ?",
		"DELETE FROM runs WHERE id = ?",
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return fmt.Errorf("deleting run %s: %w", id, err)
		}
	}
	return nil
}

// GetStats returns counts across all saved runs.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{RunsByMode: make(map[string]int)}

	rows, err := db.conn.Query("SELECT mode, COUNT(*) FROM runs GROUP BY mode")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var mode string
		var n int
		if err := rows.Scan(&mode, &n); err != nil {
			rows.Close()
			return nil, err
		}
		stats.RunsByMode[mode] = n
		stats.Runs += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.conn.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) FROM run_sources`,
		StatusFailed,
	).Scan(&stats.Sources, &stats.FailedSources); err != nil {
		return nil, err
	}

	if err := db.conn.QueryRow(
		"SELECT COUNT(*), COUNT(DISTINCT phrase) FROM run_keywords",
	).Scan(&stats.Keywords, &stats.DistinctPhrase); err != nil {
		return nil, err
	}

	return stats, nil
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
