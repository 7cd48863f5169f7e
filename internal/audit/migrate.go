package audit

// Schema is the shared DDL for the SQL-backed stores. Both sqlite and
// postgres accept this subset.
const Schema = `
CREATE TABLE IF NOT EXISTS batches (
    batch_id        TEXT PRIMARY KEY,
    execution_id    TEXT NOT NULL,
    created_at      TEXT NOT NULL,
    total_records   INTEGER NOT NULL,
    safe_count      INTEGER NOT NULL,
    review_count    INTEGER NOT NULL,
    escalate_count  INTEGER NOT NULL,
    no_action_count INTEGER NOT NULL,
    quality_rate    REAL NOT NULL,
    average_dqs     REAL NOT NULL,
    success         BOOLEAN NOT NULL,
    body_json       TEXT NOT NULL,
    body_digest     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
    batch_id              TEXT NOT NULL REFERENCES batches(batch_id),
    record_id             TEXT NOT NULL,
    action                TEXT NOT NULL,
    dqs_final             REAL NOT NULL,
    confidence_band       TEXT NOT NULL,
    primary_reason        TEXT NOT NULL,
    requires_human_review BOOLEAN NOT NULL,
    created_at            TEXT NOT NULL,
    body_json             TEXT NOT NULL,
    body_digest           TEXT NOT NULL,
    PRIMARY KEY (batch_id, record_id)
);

CREATE INDEX IF NOT EXISTS idx_decisions_action ON decisions(action);
`
