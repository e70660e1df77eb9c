package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sent_alerts (
    alert_key            TEXT PRIMARY KEY,
    window_kind          TEXT NOT NULL,
    threshold            REAL NOT NULL,
    remaining_percent    REAL NOT NULL,
    resets_at            TEXT NOT NULL,
    sent_at              TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sent_alerts_resets ON sent_alerts(resets_at);
`
