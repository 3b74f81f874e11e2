// Package kafkaplugin provides a Kafka source and sink.
package kafkaplugin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jmountifield/vector/internal/codec"
	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/plugin"
)

const batchTimeout = 100 * time.Millisecond

// SourceOptions configure the kafka source.
type SourceOptions struct {
	Brokers  []string       `yaml:"bootstrap_servers" validate:"required,min=1,dive,hostname_port"`
	Topics   []string       `yaml:"topics" validate:"required,min=1,dive,required"`
	GroupID  string         `yaml:"group_id" validate:"required"`
	Encoding codec.Encoding `yaml:"encoding" validate:"omitempty,oneof=json text"`
	// KeyField stores the message key on the event when set.
	KeyField string `yaml:"key_field"`
}

// SinkOptions configure the kafka sink.
type SinkOptions struct {
	Brokers  []string       `yaml:"bootstrap_servers" validate:"required,min=1,dive,hostname_port"`
	Topic    string         `yaml:"topic" validate:"required"`
	KeyField string         `yaml:"key_field"`
	Encoding codec.Encoding `yaml:"encoding" validate:"omitempty,oneof=json text"`
	// BatchSize caps the messages written per request.
	BatchSize int `yaml:"batch_size" validate:"gte=0"`
}

func init() {
	if err := plugin.RegisterSource("kafka", NewSource); err != nil {
		panic(err)
	}
	if err := plugin.RegisterSink("kafka", NewSink); err != nil {
		panic(err)
	}
}

type source struct {
	opts   SourceOptions
	schema event.LogSchema
	log    *logger.Logger
}

// NewSource builds a consumer-group source.
func NewSource(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Source, error) {
	var opts SourceOptions
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, err
	}
	return &source{opts: opts, schema: bc.LogSchema.WithDefaults(), log: bc.Logger}, nil
}

func (s *source) Run(ctx context.Context, shutdown <-chan struct{}, out plugin.Output) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     s.opts.Brokers,
		GroupID:     s.opts.GroupID,
		GroupTopics: s.opts.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	defer reader.Close()

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-shutdown:
			cancel()
		case <-readCtx.Done():
		}
	}()

	for {
		msg, err := reader.FetchMessage(readCtx)
		if err != nil {
			select {
			case <-shutdown:
				return nil
			default:
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("kafka fetch failed: %w", err)
		}

		ev, err := codec.Decode(s.opts.Encoding, s.schema, msg.Value)
		if err != nil {
			s.log.Warn(fmt.Sprintf("Dropping message from %s/%d@%d: %v", msg.Topic, msg.Partition, msg.Offset, err))
		} else {
			if s.opts.KeyField != "" && msg.Key != nil {
				ev.Set(s.opts.KeyField, string(msg.Key))
			}
			ev.Set("topic", msg.Topic)
			ev.Set("partition", msg.Partition)
			ev.Set("offset", msg.Offset)
			if err := out.Emit(readCtx, ev); err != nil {
				continue
			}
		}

		if err := reader.CommitMessages(readCtx, msg); err != nil && readCtx.Err() == nil {
			s.log.Warn(fmt.Sprintf("Failed to commit offset: %v", err))
		}
	}
}

type sink struct {
	opts   SinkOptions
	schema event.LogSchema
	writer *kafka.Writer
}

// NewSink builds a producer sink and a healthcheck that asks a broker for the
// topic's partitions.
func NewSink(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Sink, plugin.Healthcheck, error) {
	var opts SinkOptions
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, nil, err
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 100
	}

	s := &sink{
		opts:   opts,
		schema: bc.LogSchema.WithDefaults(),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(opts.Brokers...),
			Topic:        opts.Topic,
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    opts.BatchSize,
			BatchTimeout: batchTimeout,
			RequiredAcks: kafka.RequireAll,
		},
	}
	return s, healthcheck(opts.Brokers, opts.Topic), nil
}

func (s *sink) Run(ctx context.Context, in <-chan event.Event) error {
	defer s.writer.Close()

	batch := make([]kafka.Message, 0, s.opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := s.writer.WriteMessages(ctx, batch...)
		batch = batch[:0]
		return err
	}

	for {
		select {
		case ev, ok := <-in:
			if !ok {
				return flush()
			}
			msg, err := s.message(ev)
			if err != nil {
				return err
			}
			batch = append(batch, msg)
			// Write whatever is already queued in one request.
			if len(batch) >= s.opts.BatchSize || len(in) == 0 {
				if err := flush(); err != nil {
					return fmt.Errorf("kafka write failed: %w", err)
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *sink) message(ev event.Event) (kafka.Message, error) {
	payload, err := codec.Encode(s.opts.Encoding, s.schema, ev)
	if err != nil {
		return kafka.Message{}, err
	}
	msg := kafka.Message{Value: payload, Time: time.Now()}
	if s.opts.KeyField != "" {
		if key, ok := ev.Get(s.opts.KeyField); ok && key != nil {
			msg.Key = []byte(fmt.Sprint(key))
		}
	}
	return msg, nil
}

func healthcheck(brokers []string, topic string) plugin.Healthcheck {
	return func(ctx context.Context) error {
		var errs []error
		for _, broker := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", broker)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			partitions, err := conn.ReadPartitions(topic)
			conn.Close()
			if err != nil {
				return fmt.Errorf("reading partitions of %q: %w", topic, err)
			}
			if len(partitions) == 0 {
				return fmt.Errorf("topic %q has no partitions", topic)
			}
			return nil
		}
		return fmt.Errorf("no broker reachable: %w", errors.Join(errs...))
	}
}
