// Package httpplugin provides a sink posting batches of events to an HTTP
// endpoint.
package httpplugin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmountifield/vector/internal/codec"
	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/plugin"
)

// Options configure the http sink.
type Options struct {
	URI            string            `yaml:"uri" validate:"required,url"`
	HealthcheckURI string            `yaml:"healthcheck_uri" validate:"omitempty,url"`
	Method         string            `yaml:"method" validate:"omitempty,oneof=POST PUT"`
	Headers        map[string]string `yaml:"headers"`
	Encoding       codec.Encoding    `yaml:"encoding" validate:"omitempty,oneof=json text"`
	BatchSize      int               `yaml:"batch_size" validate:"gte=0"`
	FlushInterval  time.Duration     `yaml:"flush_interval" validate:"gte=0"`
	Timeout        time.Duration     `yaml:"timeout" validate:"gte=0"`
}

const (
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	defaultTimeout       = 30 * time.Second
)

type httpSink struct {
	opts   Options
	schema event.LogSchema
	client *http.Client
	log    *logger.Logger
}

func init() {
	if err := plugin.RegisterSink("http", New); err != nil {
		panic(err)
	}
}

// New builds an http sink. The healthcheck issues a GET against
// healthcheck_uri, or the sink URI when unset, and accepts any non-5xx reply.
func New(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Sink, plugin.Healthcheck, error) {
	var opts Options
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, nil, err
	}
	if opts.Method == "" {
		opts.Method = http.MethodPost
	}
	if opts.Encoding == "" {
		opts.Encoding = codec.JSON
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushInterval == 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	s := &httpSink{
		opts:   opts,
		schema: bc.LogSchema.WithDefaults(),
		client: &http.Client{Timeout: opts.Timeout},
		log:    bc.Logger,
	}
	return s, s.healthcheck, nil
}

func (s *httpSink) Run(ctx context.Context, in <-chan event.Event) error {
	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()

	var body bytes.Buffer
	pending := 0
	flush := func() error {
		if pending == 0 {
			return nil
		}
		err := s.send(ctx, body.Bytes())
		body.Reset()
		pending = 0
		return err
	}

	for {
		select {
		case ev, ok := <-in:
			if !ok {
				return flush()
			}
			line, err := codec.Encode(s.opts.Encoding, s.schema, ev)
			if err != nil {
				return err
			}
			body.Write(line)
			body.WriteByte('\n')
			pending++
			if pending >= s.opts.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *httpSink) send(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, s.opts.Method, s.opts.URI, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	if s.opts.Encoding == codec.JSON {
		req.Header.Set("Content-Type", "application/x-ndjson")
	} else {
		req.Header.Set("Content-Type", "text/plain")
	}
	for k, v := range s.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http request failed: %s", resp.Status)
	}
	s.log.WithFields(map[string]any{"bytes": len(payload), "status": resp.StatusCode}).Debug("Batch sent.")
	return nil
}

func (s *httpSink) healthcheck(ctx context.Context) error {
	uri := s.opts.HealthcheckURI
	if uri == "" {
		uri = s.opts.URI
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("endpoint unhealthy: %s", resp.Status)
	}
	return nil
}
