package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
)

// DefaultStream is the stream alert messages are appended to.
const DefaultStream = "station:alerts"

// RedisStreamNotifier appends each message to a Redis stream.
type RedisStreamNotifier struct {
	client *redis.Client
	stream string
}

func NewRedisStreamNotifier(client *redis.Client, stream string) *RedisStreamNotifier {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamNotifier{client: client, stream: stream}
}

func (n *RedisStreamNotifier) Notify(ctx context.Context, msg Message) error {
	to, err := json.Marshal(msg.To)
	if err != nil {
		return fmt.Errorf("marshal recipients: %w", err)
	}

	err = n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]interface{}{
			"id":           msg.ID,
			"type":         msg.Type,
			"channel_id":   strconv.Itoa(msg.ChannelID),
			"channel_name": msg.ChannelName,
			"level":        strconv.FormatFloat(msg.Level, 'f', -1, 64),
			"at":           msg.At.UTC().Format(time.RFC3339),
			"to":           string(to),
			"subject":      msg.Subject,
			"body":         msg.Body,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", n.stream, err)
	}
	return nil
}
