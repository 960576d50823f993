package db

// SchemaVersion is written to PRAGMA user_version after the schema is applied.
const SchemaVersion = 1

const schemaSQL = `
-- ==========================================================================
-- AUDIT EVENTS (device commands, connection changes, system lifecycle)
-- ==========================================================================

CREATE TABLE IF NOT EXISTS audit_events (
  event_id TEXT PRIMARY KEY,
  timestamp TEXT NOT NULL,
  type TEXT NOT NULL,
  level TEXT NOT NULL,
  request_id TEXT,
  client_id TEXT,
  device_id TEXT,
  command TEXT,
  message TEXT NOT NULL,
  payload TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_audit_events_type ON audit_events(type);
CREATE INDEX IF NOT EXISTS idx_audit_events_level ON audit_events(level);
CREATE INDEX IF NOT EXISTS idx_audit_events_device_id ON audit_events(device_id) WHERE device_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp_level ON audit_events(timestamp DESC, level);
`
