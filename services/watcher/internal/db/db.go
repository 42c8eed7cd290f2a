package db

import (
	"context"
	_ "embed"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
	"github.com/02loveslollipop/station-telemetry/services/watcher/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the archive tables when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	return err
}

// UpsertChannels inserts/updates channel metadata records.
func UpsertChannels(ctx context.Context, pool *pgxpool.Pool, rows []models.ChannelRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO telemetry.channels (id, name, field_labels, config, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW())
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    field_labels = CASE WHEN EXCLUDED.field_labels = '{}'::jsonb
        THEN telemetry.channels.field_labels ELSE EXCLUDED.field_labels END,
    config = EXCLUDED.config,
    updated_at = NOW()`

	for _, r := range rows {
		batch.Queue(query, r.ID, r.Name, r.Labels, r.Config)
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for range rows {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}

	return nil
}

// FetchLastSamples loads the most recent stored sample per series.
func FetchLastSamples(ctx context.Context, pool *pgxpool.Pool, channelIDs []int) (map[models.SampleKey]models.LastSample, error) {
	result := make(map[models.SampleKey]models.LastSample)
	if len(channelIDs) == 0 {
		return result, nil
	}

	rows, err := pool.Query(ctx, `
SELECT DISTINCT ON (channel_id, field) channel_id, field, value, ts
FROM telemetry.samples
WHERE channel_id = ANY($1)
ORDER BY channel_id, field, ts DESC`, channelIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var channelID int
		var field int16
		var value float64
		var ts time.Time
		if err := rows.Scan(&channelID, &field, &value, &ts); err != nil {
			return nil, err
		}
		key := models.SampleKey{ChannelID: channelID, Field: telemetry.FieldKey(field)}
		result[key] = models.LastSample{Value: value, TS: ts}
	}

	return result, rows.Err()
}

// InsertSamples writes new samples to the archive.
func InsertSamples(ctx context.Context, pool *pgxpool.Pool, samples []models.SampleCandidate) error {
	if len(samples) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO telemetry.samples (channel_id, field, ts, value, ingested_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (channel_id, field, ts) DO UPDATE
SET value = EXCLUDED.value,
    ingested_at = NOW()`

	for _, s := range samples {
		batch.Queue(query, s.ChannelID, int16(s.Field), s.TS, s.Value)
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for range samples {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}

	return nil
}

// InsertAlertEvents records alert entry transitions.
func InsertAlertEvents(ctx context.Context, pool *pgxpool.Pool, events []models.AlertEventRow) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO telemetry.alert_events (id, channel_id, type, level, subject, body, recipients, notified, triggered_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
ON CONFLICT (id) DO NOTHING`

	for _, e := range events {
		batch.Queue(query, e.ID, e.ChannelID, e.Type, e.Level, e.Subject, e.Body, e.Recipients, e.Notified, e.TriggeredAt)
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()

	for range events {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}

	return nil
}

// Archive adapts the package functions to a pool.
type Archive struct {
	Pool *pgxpool.Pool
}

func (a Archive) UpsertChannels(ctx context.Context, rows []models.ChannelRow) error {
	return UpsertChannels(ctx, a.Pool, rows)
}

func (a Archive) FetchLastSamples(ctx context.Context, channelIDs []int) (map[models.SampleKey]models.LastSample, error) {
	return FetchLastSamples(ctx, a.Pool, channelIDs)
}

func (a Archive) InsertSamples(ctx context.Context, samples []models.SampleCandidate) error {
	return InsertSamples(ctx, a.Pool, samples)
}

func (a Archive) InsertAlertEvents(ctx context.Context, events []models.AlertEventRow) error {
	return InsertAlertEvents(ctx, a.Pool, events)
}
