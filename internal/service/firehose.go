package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/totegamma/web5-playground/internal/domain"
)

type FirehoseService struct {
	rdb *redis.Client
}

func NewFirehoseService(redisClient *redis.Client) *FirehoseService {
	return &FirehoseService{
		rdb: redisClient,
	}
}

// Tail streams events appended to the log after the subscription began,
// in sequence order, until ctx is cancelled. Entries that cannot be
// decoded are skipped.
func (s *FirehoseService) Tail(ctx context.Context, output chan<- domain.Event) {
	lastID := "$"
	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := s.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{domain.FirehoseStream, lastID},
			Count:   64,
			Block:   5 * time.Second,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			slog.Error(
				"firehose read failed",
				slog.String("error", err.Error()),
				slog.String("module", "firehose"),
			)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				lastID = message.ID

				raw, ok := message.Values["event"].(string)
				if !ok {
					continue
				}
				var event domain.Event
				if err := json.Unmarshal([]byte(raw), &event); err != nil {
					slog.Error(
						"firehose entry decode failed",
						slog.String("id", message.ID),
						slog.String("error", err.Error()),
						slog.String("module", "firehose"),
					)
					continue
				}

				select {
				case output <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
