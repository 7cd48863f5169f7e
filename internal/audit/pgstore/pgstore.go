// Package pgstore is the postgres-backed audit ledger.
package pgstore

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/davidahmann/txnscore/internal/audit"
)

type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db}
	if _, err := db.Exec(audit.Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return s, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) PutRun(batch audit.BatchRecord, decisions []audit.DecisionRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	_, err = tx.Exec(`INSERT INTO batches
		(batch_id, execution_id, created_at, total_records, safe_count, review_count,
		 escalate_count, no_action_count, quality_rate, average_dqs, success, body_json, body_digest)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (batch_id) DO UPDATE SET
			execution_id = EXCLUDED.execution_id,
			created_at = EXCLUDED.created_at,
			total_records = EXCLUDED.total_records,
			safe_count = EXCLUDED.safe_count,
			review_count = EXCLUDED.review_count,
			escalate_count = EXCLUDED.escalate_count,
			no_action_count = EXCLUDED.no_action_count,
			quality_rate = EXCLUDED.quality_rate,
			average_dqs = EXCLUDED.average_dqs,
			success = EXCLUDED.success,
			body_json = EXCLUDED.body_json,
			body_digest = EXCLUDED.body_digest`,
		batch.BatchID, batch.ExecutionID, batch.CreatedAt, batch.TotalRecords,
		batch.SafeCount, batch.ReviewCount, batch.EscalateCount, batch.NoActionCount,
		batch.QualityRate, batch.AverageDQS, batch.Success, string(batch.BodyJSON), batch.BodyDigest)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert batch %s: %w", batch.BatchID, err)
	}

	for _, d := range decisions {
		_, err = tx.Exec(`INSERT INTO decisions
			(batch_id, record_id, action, dqs_final, confidence_band, primary_reason,
			 requires_human_review, created_at, body_json, body_digest)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (batch_id, record_id) DO UPDATE SET
				action = EXCLUDED.action,
				dqs_final = EXCLUDED.dqs_final,
				confidence_band = EXCLUDED.confidence_band,
				primary_reason = EXCLUDED.primary_reason,
				requires_human_review = EXCLUDED.requires_human_review,
				created_at = EXCLUDED.created_at,
				body_json = EXCLUDED.body_json,
				body_digest = EXCLUDED.body_digest`,
			d.BatchID, d.RecordID, d.Action, d.DQSFinal, d.ConfidenceBand,
			d.PrimaryReason, d.RequiresHumanReview, d.CreatedAt, string(d.BodyJSON), d.BodyDigest)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert decision %s/%s: %w", d.BatchID, d.RecordID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetBatch(batchID string) (audit.BatchRecord, bool) {
	row := s.db.QueryRow(`SELECT batch_id, execution_id, created_at, total_records,
		safe_count, review_count, escalate_count, no_action_count, quality_rate,
		average_dqs, success, body_json, body_digest FROM batches WHERE batch_id = $1`, batchID)

	var b audit.BatchRecord
	var body string
	err := row.Scan(&b.BatchID, &b.ExecutionID, &b.CreatedAt, &b.TotalRecords,
		&b.SafeCount, &b.ReviewCount, &b.EscalateCount, &b.NoActionCount,
		&b.QualityRate, &b.AverageDQS, &b.Success, &body, &b.BodyDigest)
	if err != nil {
		return audit.BatchRecord{}, false
	}
	b.BodyJSON = []byte(body)
	return b, true
}

func (s *Store) ListBatches(limit int) ([]audit.BatchRecord, error) {
	rows, err := s.db.Query(`SELECT batch_id, execution_id, created_at, total_records,
		safe_count, review_count, escalate_count, no_action_count, quality_rate,
		average_dqs, success, body_json, body_digest
		FROM batches ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.BatchRecord
	for rows.Next() {
		var b audit.BatchRecord
		var body string
		if err := rows.Scan(&b.BatchID, &b.ExecutionID, &b.CreatedAt, &b.TotalRecords,
			&b.SafeCount, &b.ReviewCount, &b.EscalateCount, &b.NoActionCount,
			&b.QualityRate, &b.AverageDQS, &b.Success, &body, &b.BodyDigest); err != nil {
			return nil, err
		}
		b.BodyJSON = []byte(body)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) ListDecisions(batchID string) ([]audit.DecisionRecord, error) {
	rows, err := s.db.Query(`SELECT batch_id, record_id, action, dqs_final, confidence_band,
		primary_reason, requires_human_review, created_at, body_json, body_digest
		FROM decisions WHERE batch_id = $1 ORDER BY record_id`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.DecisionRecord
	for rows.Next() {
		var d audit.DecisionRecord
		var body string
		if err := rows.Scan(&d.BatchID, &d.RecordID, &d.Action, &d.DQSFinal, &d.ConfidenceBand,
			&d.PrimaryReason, &d.RequiresHumanReview, &d.CreatedAt, &body, &d.BodyDigest); err != nil {
			return nil, err
		}
		d.BodyJSON = []byte(body)
		out = append(out, d)
	}
	return out, rows.Err()
}
