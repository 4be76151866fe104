package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nowtech-go/logmux/pkg/config"
	"github.com/nowtech-go/logmux/pkg/diag"
	"github.com/nowtech-go/logmux/pkg/engine"
	"github.com/nowtech-go/logmux/pkg/host"
	"github.com/nowtech-go/logmux/pkg/observability"
	"github.com/nowtech-go/logmux/pkg/sink"
	"github.com/nowtech-go/logmux/pkg/sink/filesink"
	"github.com/nowtech-go/logmux/pkg/sink/memsink"
	"github.com/nowtech-go/logmux/pkg/sink/mqttsink"
	"github.com/nowtech-go/logmux/pkg/sink/quicsink"
	"github.com/nowtech-go/logmux/pkg/sink/winpipe"
	"github.com/nowtech-go/logmux/pkg/webtail"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	zap.L().Info("logmux-node started", zap.String("app", cfg.AppName))
	zap.L().Info("effective configuration", zap.Any("config", cfg))

	sk, closeSink, err := buildSink(cfg)
	if err != nil {
		zap.L().Error("failed to build sink", zap.Error(err))
		return 1
	}
	defer closeSink()

	h := host.New()
	e, err := engine.New(cfg, h, sk, logger)
	if err != nil {
		zap.L().Error("failed to build engine", zap.Error(err))
		return 1
	}

	mainTag := e.RegisterCurrentTask(cfg.AppName)
	e.RegisterSubsystem(mainTag, cfg.AppName)

	var rep *diag.Reporter
	if cfg.Diag.Enable {
		rep, err = diag.NewReporter(e, logger)
		if err != nil {
			zap.L().Warn("diagnostics reporter disabled", zap.Error(err))
		} else {
			go rep.Run(time.Duration(cfg.Diag.PeriodMS)*time.Millisecond, func(b []byte) {
				if werr := appendDiagSnapshot(cfg.Diag.OutputPath, b); werr != nil {
					zap.L().Warn("diag snapshot write failed", zap.Error(werr))
				}
			})
		}
	}

	var tail *webtail.Broadcaster
	if cfg.Webtail.Enable {
		tail = webtail.New(logger)
		go func() {
			zap.L().Info("webtail listening", zap.String("addr", cfg.Webtail.Listen))
			if lerr := webtail.ListenAndServe(cfg.Webtail.Listen, tail); lerr != nil {
				zap.L().Warn("webtail server exited", zap.Error(lerr))
			}
		}()
	}

	e.Start()
	zap.L().Info("node is running; press Ctrl+C to exit")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zap.L().Info("shutdown signal received, stopping")
	e.Stop()
	if rep != nil {
		rep.Stop()
	}
	return 0
}

// buildSink constructs the configured Sink driver and a closer that
// should be deferred by the caller.
func buildSink(cfg *config.Config) (sink.Sink, func(), error) {
	switch cfg.Sink.Kind {
	case "file":
		sk := filesink.New(filesink.Config{
			Filename:   cfg.Sink.Path,
			MaxSizeMB:  cfg.Log.Rotation.MaxSizeMB,
			MaxBackups: cfg.Log.Rotation.MaxBackups,
			MaxAgeDays: cfg.Log.Rotation.MaxAgeDays,
			Compress:   cfg.Log.Rotation.Compress,
		})
		return sk, func() { _ = sk.Close() }, nil

	case "mem":
		sk, conn := memsink.New()
		go io.Copy(io.Discard, conn)
		return sk, func() { _ = sk.Close() }, nil

	case "winpipe":
		sk, err := winpipe.New(cfg.Sink.Path)
		if err != nil {
			return nil, nil, err
		}
		return sk, func() { _ = sk.Close() }, nil

	case "quic":
		addr, err := firstDialAddress(cfg)
		if err != nil {
			return nil, nil, err
		}
		sk := quicsink.New(quicsink.Config{
			Address:       addr,
			RateBytesPerS: extraInt64(cfg.Sink.Extra, "rate_bytes_per_s", 0),
			BurstBytes:    extraInt64(cfg.Sink.Extra, "burst_bytes", 0),
		})
		return sk, func() { _ = sk.Close() }, nil

	case "mqtt":
		addr, err := firstDialAddress(cfg)
		if err != nil {
			return nil, nil, err
		}
		sk, err := mqttsink.New(mqttsink.Config{
			BrokerURL:     addr,
			ClientID:      extraString(cfg.Sink.Extra, "client_id", cfg.AppName),
			Topic:         extraString(cfg.Sink.Extra, "topic", "logmux/"+cfg.AppName),
			QoS:           byte(extraInt64(cfg.Sink.Extra, "qos", 0)),
			RateBytesPerS: extraInt64(cfg.Sink.Extra, "rate_bytes_per_s", 0),
			BurstBytes:    extraInt64(cfg.Sink.Extra, "burst_bytes", 0),
		})
		if err != nil {
			return nil, nil, err
		}
		return sk, func() { _ = sk.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown sink.kind %q", cfg.Sink.Kind)
	}
}

func firstDialAddress(cfg *config.Config) (string, error) {
	if len(cfg.Sink.Dial) == 0 || cfg.Sink.Dial[0].Address == "" {
		return "", fmt.Errorf("sink.kind=%q requires at least one sink.dial[].address", cfg.Sink.Kind)
	}
	return cfg.Sink.Dial[0].Address, nil
}

func extraString(extra map[string]any, key, def string) string {
	if v, ok := extra[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func extraInt64(extra map[string]any, key string, def int64) int64 {
	v, ok := extra[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return def
	}
}

// appendDiagSnapshot appends one length-prefixed CBOR snapshot to path,
// so a reader can later split the stream back into individual records.
func appendDiagSnapshot(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	length := uint32(len(b))
	prefix := []byte{byte(length >> 24), byte(length >> 16), byte(length >> 8), byte(length)}
	if _, err := f.Write(prefix); err != nil {
		return err
	}
	_, err = f.Write(b)
	return err
}
