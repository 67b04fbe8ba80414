package outcome

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"auctioncore/internal/services/auction"
)

const (
	DefaultStream = "auction:outcomes"
	payloadField  = "payload"
	streamMaxLen  = 100000
)

// StreamPublisher appends outcomes to a Redis stream.
type StreamPublisher struct {
	rdc    *redis.Client
	stream string
}

var _ Publisher = (*StreamPublisher)(nil)

func NewStreamPublisher(rdc *redis.Client, stream string) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{rdc: rdc, stream: stream}
}

func (p *StreamPublisher) Publish(ctx context.Context, o auction.Outcome) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return p.rdc.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: []any{payloadField, string(payload)},
	}).Err()
}

// StreamConsumer reads one consumer group. Entries are acknowledged after the
// handler ran (successfully or not), so a crash in between means redelivery.
type StreamConsumer struct {
	rdc      *redis.Client
	stream   string
	group    string
	consumer string
	handler  Handler
	retry    Retry
	count    int64
	block    time.Duration
	errWait  time.Duration
}

func NewStreamConsumer(rdc *redis.Client, stream, group, consumer string, h Handler, retry Retry) *StreamConsumer {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamConsumer{
		rdc:      rdc,
		stream:   stream,
		group:    group,
		consumer: consumer,
		handler:  h,
		retry:    retry,
		count:    50,
		block:    2 * time.Second,
		errWait:  time.Second,
	}
}

func (c *StreamConsumer) ensureGroup(ctx context.Context) error {
	err := c.rdc.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Run first drains entries left pending for this consumer, then tails new ones.
func (c *StreamConsumer) Run(ctx context.Context) {
	log := zap.L().With(zap.String("stream", c.stream), zap.String("group", c.group))
	if err := c.ensureGroup(ctx); err != nil {
		log.Error("outcome.group_create", zap.Error(err))
		return
	}

	lastID := "0"
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := c.rdc.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, lastID},
			Count:    c.count,
			Block:    c.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("outcome.xreadgroup", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.errWait):
			}
			continue
		}

		var msgs []redis.XMessage
		if len(res) > 0 {
			msgs = res[0].Messages
		}
		if len(msgs) == 0 {
			if lastID != ">" {
				lastID = ">" // pending backlog is empty
			}
			continue
		}
		c.process(ctx, msgs)
		if lastID != ">" {
			lastID = msgs[len(msgs)-1].ID
		}
	}
}

func (c *StreamConsumer) process(ctx context.Context, msgs []redis.XMessage) {
	for _, m := range msgs {
		o, err := decode(m)
		if err != nil {
			zap.L().Error("outcome.decode", zap.String("id", m.ID), zap.Error(err))
		} else if err := deliver(ctx, c.group, c.handler, o, c.retry); err != nil {
			zap.L().Error("outcome.dropped",
				zap.String("consumer", c.group),
				zap.Int64("item_id", o.ItemID),
				zap.Error(err),
			)
		}
		if err := c.rdc.XAck(ctx, c.stream, c.group, m.ID).Err(); err != nil {
			zap.L().Warn("outcome.xack", zap.String("id", m.ID), zap.Error(err))
		}
	}
}

func decode(m redis.XMessage) (auction.Outcome, error) {
	var o auction.Outcome
	raw, ok := m.Values[payloadField].(string)
	if !ok {
		return o, errors.New("missing payload field")
	}
	err := json.Unmarshal([]byte(raw), &o)
	return o, err
}
