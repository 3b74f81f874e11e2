// Package natsplugin provides a NATS source and sink.
package natsplugin

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jmountifield/vector/internal/codec"
	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/plugin"
)

const connectTimeout = 5 * time.Second

// SourceOptions configure the nats source.
type SourceOptions struct {
	URL      string         `yaml:"url" validate:"required,url"`
	Subject  string         `yaml:"subject" validate:"required"`
	Queue    string         `yaml:"queue"`
	Encoding codec.Encoding `yaml:"encoding" validate:"omitempty,oneof=json text"`
}

// SinkOptions configure the nats sink.
type SinkOptions struct {
	URL      string         `yaml:"url" validate:"required,url"`
	Subject  string         `yaml:"subject" validate:"required"`
	Encoding codec.Encoding `yaml:"encoding" validate:"omitempty,oneof=json text"`
}

func init() {
	if err := plugin.RegisterSource("nats", NewSource); err != nil {
		panic(err)
	}
	if err := plugin.RegisterSink("nats", NewSink); err != nil {
		panic(err)
	}
}

func connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(url, nats.Name("vector:"+name), nats.Timeout(connectTimeout))
}

type source struct {
	name   string
	opts   SourceOptions
	schema event.LogSchema
	log    *logger.Logger
}

// NewSource builds a subscriber source.
func NewSource(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Source, error) {
	var opts SourceOptions
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, err
	}
	return &source{name: bc.Name, opts: opts, schema: bc.LogSchema.WithDefaults(), log: bc.Logger}, nil
}

func (s *source) Run(ctx context.Context, shutdown <-chan struct{}, out plugin.Output) error {
	nc, err := connect(s.opts.URL, s.name)
	if err != nil {
		return fmt.Errorf("nats connect failed: %w", err)
	}
	defer nc.Close()

	msgs := make(chan *nats.Msg, 256)
	var sub *nats.Subscription
	if s.opts.Queue != "" {
		sub, err = nc.ChanQueueSubscribe(s.opts.Subject, s.opts.Queue, msgs)
	} else {
		sub, err = nc.ChanSubscribe(s.opts.Subject, msgs)
	}
	if err != nil {
		return fmt.Errorf("nats subscribe failed: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	for {
		select {
		case msg := <-msgs:
			ev, err := codec.Decode(s.opts.Encoding, s.schema, msg.Data)
			if err != nil {
				s.log.Warn(fmt.Sprintf("Dropping message on %s: %v", msg.Subject, err))
				continue
			}
			ev.Set("subject", msg.Subject)
			if err := out.Emit(ctx, ev); err != nil {
				return err
			}
		case <-shutdown:
			_ = sub.Drain()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type sink struct {
	name   string
	opts   SinkOptions
	schema event.LogSchema
}

// NewSink builds a publisher sink. Its healthcheck connects and flushes.
func NewSink(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Sink, plugin.Healthcheck, error) {
	var opts SinkOptions
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, nil, err
	}
	s := &sink{name: bc.Name, opts: opts, schema: bc.LogSchema.WithDefaults()}
	return s, s.healthcheck, nil
}

func (s *sink) Run(ctx context.Context, in <-chan event.Event) error {
	nc, err := connect(s.opts.URL, s.name)
	if err != nil {
		return fmt.Errorf("nats connect failed: %w", err)
	}
	defer nc.Close()

	for {
		select {
		case ev, ok := <-in:
			if !ok {
				return nc.FlushWithContext(ctx)
			}
			payload, err := codec.Encode(s.opts.Encoding, s.schema, ev)
			if err != nil {
				return err
			}
			if err := nc.Publish(s.opts.Subject, payload); err != nil {
				return fmt.Errorf("nats publish failed: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *sink) healthcheck(ctx context.Context) error {
	nc, err := connect(s.opts.URL, s.name+"-healthcheck")
	if err != nil {
		return err
	}
	defer nc.Close()
	return nc.FlushWithContext(ctx)
}
