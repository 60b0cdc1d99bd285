// Package di wires the decode pipeline together from configuration.
package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ssargent/hermesportal/pkg/api"
	"github.com/ssargent/hermesportal/pkg/capture"
	"github.com/ssargent/hermesportal/pkg/codec"
	"github.com/ssargent/hermesportal/pkg/config"
	"github.com/ssargent/hermesportal/pkg/market"
	"github.com/ssargent/hermesportal/pkg/parser"
	"github.com/ssargent/hermesportal/pkg/sink"
	"github.com/ssargent/hermesportal/pkg/storage"
)

// Container holds all the dependencies for the application
type Container struct {
	config    *config.Config
	log       *zerolog.Logger
	startedAt time.Time

	feed     market.Feed
	registry *market.Registry
	strikes  market.StrikeList
	codec    *codec.Codec
	parser   *parser.Parser
	metrics  *api.Metrics

	capture   *capture.Writer
	capFailed atomic.Uint64
	files     *sink.FileWriter
	relay     *sink.Relay
	blobs     *storage.BlobStore
	recorder  *storage.Recorder
	server    *api.Server
}

// NewContainer builds every component the configuration enables. Console
// output goes to out.
func NewContainer(cfg *config.Config, out io.Writer, logger *zerolog.Logger) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	c := &Container{config: cfg, log: logger, startedAt: time.Now()}
	if err := c.build(out); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) build(out io.Writer) error {
	var err error
	if c.feed, err = market.ParseFeed(c.config.Feed.Family); err != nil {
		return err
	}

	sel, err := Selection(c.config.Filter)
	if err != nil {
		return err
	}
	if c.registry, err = market.BuildRegistry(c.feed, sel); err != nil {
		return fmt.Errorf("failed to build registry: %w", err)
	}
	c.strikes = market.NewStrikeList(c.config.Filter.Tokens...)

	c.metrics = api.NewMetrics()
	c.codec = codec.New(codec.Config{Logger: c.log})
	c.metrics.WatchCodec(c.codec)

	lines, err := c.buildSink(out)
	if err != nil {
		return err
	}

	if path := c.config.Capture.Path; path != "" {
		c.capture, err = capture.NewWriter(capture.WriterConfig{
			Path:          path,
			FsyncInterval: time.Duration(c.config.Capture.FsyncMillis) * time.Millisecond,
		})
		if err != nil {
			return fmt.Errorf("failed to open capture: %w", err)
		}
		c.log.Info().Str("path", path).Msg("capturing datagrams")
	}

	var diag parser.Diagnostics
	if c.config.Diagnostics.Enabled {
		if c.blobs, err = storage.OpenBlobStore(c.config.Diagnostics.BlobDir); err != nil {
			return err
		}
		c.recorder = storage.NewRecorder(c.blobs, c.config.Diagnostics.QueueSize, c.log)
		c.metrics.WatchDropped("diagnostics", c.recorder.Dropped)
		diag = c.recorder
	}

	c.parser, err = parser.New(parser.Config{
		Feed:        c.feed,
		Registry:    c.registry,
		Filter:      c.strikes,
		Sink:        lines,
		Codec:       c.codec,
		Diagnostics: diag,
		Observer:    c.metrics,
		Logger:      c.log,
	})
	if err != nil {
		return err
	}

	if c.config.Status.Enabled {
		var blobs api.BlobSource
		if c.blobs != nil {
			blobs = c.blobs
		}
		c.server = api.NewServer(api.ServerConfig{
			Addr:   c.config.Status.Addr,
			APIKey: c.config.Status.APIKey,
		}, c, blobs, c.metrics, c.log)
	}
	return nil
}

// buildSink selects the output the way the relay deployment expects: the
// chosen mode plus an optional console mirror.
func (c *Container) buildSink(out io.Writer) (market.Sink, error) {
	o := c.config.Output
	console := sink.NewConsole(out)

	var primary market.Sink
	switch o.Mode {
	case config.OutputFile:
		fw, err := sink.NewFileWriter(sink.FileConfig{
			BaseDir:   o.File.BaseDir,
			QueueSize: o.File.QueueSize,
			Logger:    c.log,
		})
		if err != nil {
			return nil, err
		}
		c.files = fw
		c.metrics.WatchDropped("file", fw.Dropped)
		primary = fw
		c.log.Info().Str("base", o.File.BaseDir).Msg("writing to files")
	case config.OutputSocket:
		relay, err := sink.NewRelay(sink.RelayConfig{
			Addr:       fmt.Sprintf("%s:%d", o.Socket.Bind, o.Socket.Port),
			Token:      o.Socket.Token,
			MaxQueue:   o.Socket.MaxQueue,
			BatchBytes: o.Socket.BatchBytes,
			RejectBusy: o.Socket.RejectBusy,
			Logger:     c.log,
		})
		if err != nil {
			return nil, err
		}
		c.relay = relay
		c.metrics.WatchDropped("relay", relay.Dropped)
		primary = relay
		c.log.Info().
			Str("addr", relay.Addr().String()).
			Str("token", maskToken(o.Socket.Token)).
			Msg("socket output enabled")
	default:
		return console, nil
	}

	if o.Mirror {
		return sink.Fanout{primary, console}, nil
	}
	return primary, nil
}

// Selection turns the configured code list into a registry selection.
func Selection(f config.Filter) (market.Selection, error) {
	sel := market.Selection{All: f.MarketAll}
	for _, raw := range f.Enabled {
		for _, item := range strings.Split(raw, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			code, err := market.ParseCode(item)
			if err != nil {
				return market.Selection{}, fmt.Errorf("invalid enabled code %q: %w", item, err)
			}
			sel.Enabled = append(sel.Enabled, code)
		}
	}
	return sel, nil
}

func maskToken(t string) string {
	if len(t) <= 4 {
		return "<set>"
	}
	return t[:4] + "..."
}

func (c *Container) Config() *config.Config        { return c.config }
func (c *Container) Feed() market.Feed             { return c.feed }
func (c *Container) Registry() *market.Registry    { return c.registry }
func (c *Container) Parser() *parser.Parser        { return c.parser }
func (c *Container) Metrics() *api.Metrics         { return c.metrics }
func (c *Container) Relay() *sink.Relay            { return c.relay }
func (c *Container) BlobStore() *storage.BlobStore { return c.blobs }

// Handle captures pkt when capture is on and decodes it. It is the
// listener handler for live sessions.
func (c *Container) Handle(pkt []byte) {
	if c.capture != nil {
		if _, err := c.capture.Append(time.Now(), pkt); err != nil {
			if c.capFailed.Add(1) == 1 {
				c.log.Warn().Err(err).Msg("capture append failed")
			}
		}
	}
	c.parser.Parse(pkt)
}

// Status implements api.StatusSource.
func (c *Container) Status() api.Status {
	ps := c.parser.Stats()
	cs := c.codec.Stats()
	st := api.Status{
		Feed:               c.feed.String(),
		StartedAt:          c.startedAt,
		Packets:            ps.Packets,
		Records:            ps.Records,
		Failures:           ps.Failures,
		UnknownCodes:       ps.UnknownCodes,
		ChecksumMismatches: ps.ChecksumMismatches,
		ShortPackets:       ps.ShortPackets,
		Codec: api.CodecStatus{
			Calls:       cs.Calls,
			Attempts:    cs.Attempts,
			CacheHits:   cs.CacheHits,
			CacheMisses: cs.CacheMisses,
			Failures:    cs.Failures,
			LastStep:    cs.LastStep.String(),
			Locus:       cs.Locus.String(),
		},
	}
	if c.capture != nil {
		st.CapturedFrames = c.capture.Frames()
		st.CaptureErrors = c.capFailed.Load()
	}
	if c.recorder != nil {
		st.BlobsStored = c.recorder.Stored()
		st.BlobsDropped = c.recorder.Dropped()
	}
	return st
}

// ServeStatus runs the status server until ctx is cancelled. It returns
// immediately when the server is disabled.
func (c *Container) ServeStatus(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.ListenAndServe(ctx)
}

// Close flushes and releases everything in reverse build order.
func (c *Container) Close() error {
	var errs []error
	if c.recorder != nil {
		c.recorder.Close()
	}
	if c.blobs != nil {
		errs = append(errs, c.blobs.Close())
	}
	if c.capture != nil {
		errs = append(errs, c.capture.Close())
	}
	if c.relay != nil {
		errs = append(errs, c.relay.Close())
	}
	if c.files != nil {
		errs = append(errs, c.files.Close())
	}
	return errors.Join(errs...)
}
