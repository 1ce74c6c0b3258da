package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      session_id,
                      started_at,
                      latitude,
                      longitude,
                      altitude,
                      duration_seconds,
                      frequency_hz,
                      sample_rate_hz,
                      tx_gain,
                      power_level)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	endSessionSQL = `
UPDATE sessions
SET ended_at     = ?,
    final_status = ?,
    detail       = ?
WHERE
    id = ?`

	selectRecentSQL = `
SELECT
    id,
    session_id,
    started_at,
    ended_at,
    latitude,
    longitude,
    altitude,
    duration_seconds,
    frequency_hz,
    sample_rate_hz,
    tx_gain,
    power_level,
    final_status,
    detail
FROM sessions
ORDER BY started_at DESC
LIMIT ?`
)

//go:embed schema.sql
var initSchemaSQL string
