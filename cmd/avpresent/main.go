package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/avpresent"
	"github.com/xaionaro-go/avpresent/decoder"
	"github.com/xaionaro-go/avpresent/decoder/libav"
	"github.com/xaionaro-go/avpresent/decoder/mjpeg"
	"github.com/xaionaro-go/avpresent/framequeue"
	"github.com/xaionaro-go/avpresent/sink/directory"
	"github.com/xaionaro-go/avpresent/sink/memsurface"
	"github.com/xaionaro-go/avpresent/sink/snapshot"
	"github.com/xaionaro-go/avpresent/source/rtsp"
	"github.com/xaionaro-go/observability"
	"golang.org/x/sys/unix"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [options] <rtsp://URL>\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	configPath := pflag.String("config", "", "path to a YAML config")
	degrade := pflag.Bool("degrade-under-load", false, "degrade and skip decoding while the presented frames are late")
	grayscale := pflag.Bool("grayscale", false, "decode luma only")
	decoderName := pflag.String("decoder", "auto", "decoder implementation: auto, libav or mjpeg")
	sinkName := pflag.String("sink", "memory", "display surface: memory, snapshot or window")
	snapshotDir := pflag.String("snapshot-dir", ".", "directory to write snapshots to")
	snapshotEvery := pflag.Uint64("snapshot-every", 25, "write every N-th presented picture")
	snapshotExt := pflag.String("snapshot-format", "png", "snapshot image format: png or jpeg")
	thumbnail := pflag.String("snapshot-thumbnail", "", "resize snapshots to WxH")
	statsInterval := pflag.Duration("stats-interval", time.Second, "how often to print statistics, zero to disable")
	dumpConfig := pflag.Bool("dump-config", false, "print the effective config and exit")
	pflag.Parse()
	if len(pflag.Args()) != 1 && !*dumpConfig {
		pflag.Usage()
		os.Exit(1)
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	logger.Default = func() logger.Logger {
		return l
	}
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	astiav.SetLogLevel(libav.LogLevelToAstiav(l.Level()))
	astiav.SetLogCallback(func(c astiav.Classer, level astiav.LogLevel, fmt, msg string) {
		var cs string
		if c != nil {
			if cl := c.Class(); cl != nil {
				cs = " - class: " + cl.String()
			}
		}
		l.Logf(
			libav.LogLevelFromAstiav(level),
			"%s%s",
			strings.TrimSpace(msg), cs,
		)
	})

	cfg := avpresent.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = avpresent.LoadConfig(*configPath)
		if err != nil {
			l.Fatal(err)
		}
	}
	if pflag.CommandLine.Changed("degrade-under-load") {
		cfg.DegradeUnderLoad = *degrade
	}
	if pflag.CommandLine.Changed("grayscale") {
		cfg.GrayscaleOnly = *grayscale
	}
	if *dumpConfig {
		os.Stdout.Write(cfg.Bytes())
		return
	}

	surfaceFactory, err := newSurfaceFactory(*sinkName, snapshot.Config{
		Dir:       *snapshotDir,
		Every:     *snapshotEvery,
		Extension: *snapshotExt,
	}, *thumbnail)
	if err != nil {
		l.Fatal(err)
	}

	queue := framequeue.New(cfg.QueueSize)
	src := rtsp.New(pflag.Arg(0), queue)
	l.Debugf("opening '%s'...", src.URL)
	input, err := src.Open(ctx)
	if err != nil {
		l.Fatal(err)
	}
	if cfg.Codec == "" {
		cfg.Codec = string(input.Codec)
	}

	decoderFactory, err := newDecoderFactory(*decoderName)
	if err != nil {
		l.Fatal(err)
	}

	p, err := avpresent.New(
		ctx, cfg, queue, decoderFactory,
		directory.New(surfaceFactory),
		avpresent.OptionDecoderInput(input),
	)
	if err != nil {
		l.Fatal(err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, unix.SIGTERM)
	observability.Go(ctx, func(ctx context.Context) {
		select {
		case <-ctx.Done():
		case sig := <-signals:
			l.Infof("received %v, stopping", sig)
			p.Stop(ctx)
			queue.Close(ctx)
		}
	})

	observability.Go(ctx, func(ctx context.Context) {
		if err := src.Serve(ctx); err != nil {
			l.Errorf("the source has failed: %v", err)
		}
	})

	errCh := make(chan error, 1)
	observability.Go(ctx, func(ctx context.Context) {
		defer cancelFn()
		errCh <- p.Serve(ctx)
	})

	var tickCh <-chan time.Time
	if *statsInterval > 0 {
		t := time.NewTicker(*statsInterval)
		defer t.Stop()
		tickCh = t.C
	}
	for {
		select {
		case err := <-errCh:
			printStats(p.GetStats(), src)
			if err != nil {
				l.Fatal(err)
			}
			return
		case <-tickCh:
			printStats(p.GetStats(), src)
		}
	}
}

func printStats(stats *avpresent.Statistics, src *rtsp.Source) {
	fmt.Printf(
		"received:%s presented:%s skipped:%s degraded:%s decode-errors:%s late:%d queue:%d\n",
		humanize.Comma(int64(src.FramesEnqueued.Load())),
		humanize.Comma(int64(stats.FramesPresented)),
		humanize.Comma(int64(stats.FramesSkipped)),
		humanize.Comma(int64(stats.FramesDegraded)),
		humanize.Comma(int64(stats.DecodeErrors)),
		stats.LateCount,
		stats.QueueDepth,
	)
}

func newDecoderFactory(name string) (decoder.Factory, error) {
	switch name {
	case "auto":
		return &decoder.Factories{
			ByCodec: map[decoder.Name]decoder.Factory{
				decoder.NameMJPEG: mjpeg.Factory{},
			},
			Default: libav.Factory{},
		}, nil
	case "libav":
		return libav.Factory{}, nil
	case "mjpeg":
		return mjpeg.Factory{}, nil
	default:
		return nil, fmt.Errorf("unknown decoder '%s'", name)
	}
}

func newSurfaceFactory(
	name string,
	snapshotCfg snapshot.Config,
	thumbnail string,
) (directory.SurfaceFactory, error) {
	switch name {
	case "memory":
		return memsurface.Factory{}, nil
	case "snapshot":
		if thumbnail != "" {
			if err := snapshotCfg.Thumbnail.Parse(thumbnail); err != nil {
				return nil, err
			}
		}
		if err := os.MkdirAll(snapshotCfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("unable to create '%s': %w", snapshotCfg.Dir, err)
		}
		return snapshot.Factory{Config: snapshotCfg}, nil
	case "window":
		return newWindowFactory("avpresent")
	default:
		return nil, fmt.Errorf("unknown sink '%s'", name)
	}
}
