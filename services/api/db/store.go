package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
)

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const channelLabelsSQL = `
    SELECT name, field_labels
    FROM telemetry.channels
    WHERE id = $1
`

const archivedSamplesSQL = `
    SELECT field, ts, value
    FROM telemetry.samples
    WHERE channel_id = $1 AND ts >= $2 AND ts <= $3
    ORDER BY field, ts
`

// FetchWindow reads archived samples of a channel between start and end
// inclusive. It lets the archive stand in for the live source.
func (s *Store) FetchWindow(ctx context.Context, channelID int, start, end time.Time) (*telemetry.ChannelData, error) {
	data := &telemetry.ChannelData{
		Fields: make(map[telemetry.FieldKey]string),
		Data:   make(map[telemetry.FieldKey][]telemetry.Sample),
	}

	var labels map[string]string
	err := s.pool.QueryRow(ctx, channelLabelsSQL, channelID).Scan(&data.Name, &labels)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("channel %d not archived: %w", channelID, telemetry.ErrInvalidEnvelope)
	}
	if err != nil {
		return nil, err
	}
	for k, label := range labels {
		key, err := telemetry.ParseFieldKey(k)
		if err != nil {
			continue
		}
		data.Fields[key] = label
		data.Data[key] = []telemetry.Sample{}
	}

	rows, err := s.pool.Query(ctx, archivedSamplesSQL, channelID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var field int16
		var sample telemetry.Sample
		if err := rows.Scan(&field, &sample.Date, &sample.Value); err != nil {
			return nil, err
		}
		key := telemetry.FieldKey(field)
		data.Data[key] = append(data.Data[key], sample)
	}
	return data, rows.Err()
}
