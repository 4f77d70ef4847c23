package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/TobiSchelling/ReviewGuide/internal/review"
)

const analysisColumns = `a.id, a.product_name, a.payload, a.video_count, a.guide_status, a.analyzed_at,
	g.outcome, g.guide, g.reason, g.resolved_at`

// SaveAnalysis inserts or replaces the analysis for a product. A previous
// guide outcome is dropped since a new analysis starts a new guide.
func (db *DB) SaveAnalysis(result *review.AnalysisResult) (int64, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("marshaling analysis: %w", err)
	}

	guideStatus := result.GuideStatus
	if guideStatus == "" {
		guideStatus = review.GuideReady
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM guide_outcomes WHERE product_name = ?", result.ProductName); err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRow(
		`INSERT INTO analyses (product_name, payload, video_count, guide_status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(product_name) DO UPDATE SET
			payload = excluded.payload,
			video_count = excluded.video_count,
			guide_status = excluded.guide_status,
			analyzed_at = datetime('now')
		RETURNING id`,
		result.ProductName, string(payload), len(result.YouTubeReviews), string(guideStatus),
	).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, tx.Commit()
}

// SaveGuideOutcome records the terminal guide result for an analyzed product.
func (db *DB) SaveGuideOutcome(productName, outcome string, guide *review.PurchaseGuide, reason string) error {
	var guideJSON, reasonVal *string
	if guide != nil {
		data, err := json.Marshal(guide)
		if err != nil {
			return fmt.Errorf("marshaling guide: %w", err)
		}
		s := string(data)
		guideJSON = &s
	}
	if reason != "" {
		reasonVal = &reason
	}

	_, err := db.conn.Exec(
		`INSERT OR REPLACE INTO guide_outcomes (product_name, outcome, guide, reason)
		VALUES (?, ?, ?, ?)`,
		productName, outcome, guideJSON, reasonVal,
	)
	return err
}

// GetAnalysis returns the stored analysis for a product, or nil.
func (db *DB) GetAnalysis(productName string) (*Analysis, error) {
	row := db.conn.QueryRow(
		`SELECT `+analysisColumns+`
		FROM analyses a LEFT JOIN guide_outcomes g ON g.product_name = a.product_name
		WHERE a.product_name = ?`, productName,
	)

	a, err := scanAnalysis(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// GetAllAnalyses returns all analyses, most recent first.
func (db *DB) GetAllAnalyses() ([]Analysis, error) {
	rows, err := db.conn.Query(
		`SELECT ` + analysisColumns + `
		FROM analyses a LEFT JOIN guide_outcomes g ON g.product_name = a.product_name
		ORDER BY a.analyzed_at DESC, a.id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, *a)
	}
	return analyses, rows.Err()
}

// DeleteAnalysis removes a product and its guide outcome.
func (db *DB) DeleteAnalysis(productName string) error {
	if _, err := db.conn.Exec("DELETE FROM guide_outcomes WHERE product_name = ?", productName); err != nil {
		return err
	}
	_, err := db.conn.Exec("DELETE FROM analyses WHERE product_name = ?", productName)
	return err
}

// GetStats returns aggregate counts.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM analyses", &s.Analyses},
		{"SELECT COUNT(*) FROM guide_outcomes WHERE outcome = 'completed'", &s.GuidesCompleted},
		{"SELECT COUNT(*) FROM guide_outcomes WHERE outcome = 'failed'", &s.GuidesFailed},
		{"SELECT COUNT(*) FROM guide_outcomes WHERE outcome = 'timed_out'", &s.GuidesTimedOut},
		{`SELECT COUNT(*) FROM analyses a
			WHERE a.guide_status = 'processing'
			AND NOT EXISTS (SELECT 1 FROM guide_outcomes g WHERE g.product_name = a.product_name)`, &s.GuidesPending},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (*Analysis, error) {
	var (
		a                             Analysis
		payload                       string
		outcome, guide, reason, resAt *string
	)
	if err := row.Scan(&a.ID, &a.ProductName, &payload, &a.VideoCount, &a.GuideStatus, &a.AnalyzedAt,
		&outcome, &guide, &reason, &resAt); err != nil {
		return nil, err
	}

	var result review.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decoding stored analysis for %s: %w", a.ProductName, err)
	}
	a.Result = &result

	if outcome != nil {
		o := &GuideOutcome{
			ProductName: a.ProductName,
			Outcome:     *outcome,
			Reason:      reason,
			ResolvedAt:  resAt,
		}
		if guide != nil {
			var g review.PurchaseGuide
			if err := json.Unmarshal([]byte(*guide), &g); err != nil {
				return nil, fmt.Errorf("decoding stored guide for %s: %w", a.ProductName, err)
			}
			o.Guide = &g
		}
		a.Outcome = o
	}

	return &a, nil
}
