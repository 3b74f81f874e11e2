// Package fileplugin provides a source that follows files matched by glob
// patterns.
package fileplugin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	jsoniter "github.com/json-iterator/go"

	"github.com/jmountifield/vector/internal/codec"
	"github.com/jmountifield/vector/internal/config"
	"github.com/jmountifield/vector/internal/event"
	"github.com/jmountifield/vector/internal/logger"
	"github.com/jmountifield/vector/internal/plugin"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configure the file source.
type Options struct {
	Include          []string       `yaml:"include" validate:"required,min=1,dive,required"`
	Exclude          []string       `yaml:"exclude"`
	StartAtBeginning bool           `yaml:"start_at_beginning"`
	PollInterval     time.Duration  `yaml:"poll_interval" validate:"gte=0"`
	Encoding         codec.Encoding `yaml:"encoding" validate:"omitempty,oneof=json text"`
	// FileKey names the field holding the source path. Empty disables it.
	FileKey *string `yaml:"file_key"`
}

const (
	defaultPollInterval = time.Second
	checkpointFile      = "checkpoints.json"
)

type fileSource struct {
	opts        Options
	schema      event.LogSchema
	log         *logger.Logger
	fileKey     string
	checkpoints string

	offsets map[string]int64
}

func init() {
	if err := plugin.RegisterSource("file", New); err != nil {
		panic(err)
	}
}

// New builds a file source. With a data directory, read offsets survive
// restarts.
func New(bc plugin.BuildContext, def config.ComponentConfig) (plugin.Source, error) {
	var opts Options
	if err := config.DecodeOptions(def.Options, &opts); err != nil {
		return nil, err
	}
	for _, pattern := range append(append([]string(nil), opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, fmt.Errorf("invalid glob pattern %q", pattern)
		}
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = defaultPollInterval
	}

	s := &fileSource{
		opts:    opts,
		schema:  bc.LogSchema.WithDefaults(),
		log:     bc.Logger,
		fileKey: "file",
		offsets: make(map[string]int64),
	}
	if opts.FileKey != nil {
		s.fileKey = *opts.FileKey
	}
	if bc.DataDir != "" {
		s.checkpoints = filepath.Join(bc.DataDir, bc.Name, checkpointFile)
	}
	return s, nil
}

func (s *fileSource) Run(ctx context.Context, shutdown <-chan struct{}, out plugin.Output) error {
	restored := s.loadCheckpoints()
	defer s.saveCheckpoints()

	if !s.opts.StartAtBeginning && !restored {
		for _, path := range s.matches() {
			if info, err := os.Stat(path); err == nil {
				s.offsets[path] = info.Size()
			}
		}
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		for _, path := range s.matches() {
			if err := s.readNew(ctx, path, out); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Warn(fmt.Sprintf("Failed reading %s: %v", path, err))
			}
		}

		select {
		case <-ticker.C:
		case <-shutdown:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *fileSource) matches() []string {
	seen := make(map[string]struct{})
	for _, pattern := range s.opts.Include {
		paths, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			continue
		}
		for _, path := range paths {
			if !s.excluded(path) {
				seen[path] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func (s *fileSource) excluded(path string) bool {
	for _, pattern := range s.opts.Exclude {
		if ok, _ := doublestar.PathMatch(pattern, path); ok {
			return true
		}
	}
	return false
}

// readNew emits every complete line appended since the last read. A file
// that shrank is assumed truncated and read again from the start.
func (s *fileSource) readNew(ctx context.Context, path string, out plugin.Output) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	offset := s.offsets[path]
	if info.Size() < offset {
		offset = 0
	}
	if info.Size() == offset {
		s.offsets[path] = offset
		return nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSuffix(data[:idx], []byte{'\r'})
		data = data[idx+1:]
		offset += int64(idx + 1)

		ev, err := codec.Decode(s.opts.Encoding, s.schema, line)
		if err != nil {
			s.log.Warn(fmt.Sprintf("Dropping unparseable line in %s: %v", path, err))
			continue
		}
		if s.fileKey != "" {
			ev.Set(s.fileKey, path)
		}
		if err := out.Emit(ctx, ev); err != nil {
			s.offsets[path] = offset
			return err
		}
	}

	s.offsets[path] = offset
	return nil
}

func (s *fileSource) loadCheckpoints() bool {
	if s.checkpoints == "" {
		return false
	}
	data, err := os.ReadFile(s.checkpoints)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, &s.offsets); err != nil {
		s.log.Warn(fmt.Sprintf("Ignoring corrupt checkpoints %s: %v", s.checkpoints, err))
		s.offsets = make(map[string]int64)
		return false
	}
	return true
}

func (s *fileSource) saveCheckpoints() {
	if s.checkpoints == "" {
		return
	}
	data, err := json.Marshal(s.offsets)
	if err == nil {
		err = os.MkdirAll(filepath.Dir(s.checkpoints), 0o755)
	}
	if err == nil {
		err = os.WriteFile(s.checkpoints, data, 0o644)
	}
	if err != nil {
		s.log.Warn(fmt.Sprintf("Failed to save checkpoints: %v", err))
	}
}
