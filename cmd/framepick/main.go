package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ivlev/framepick/internal/config"
	"github.com/ivlev/framepick/internal/export"
	"github.com/ivlev/framepick/internal/gui"
	"github.com/ivlev/framepick/internal/logger"
	"github.com/ivlev/framepick/internal/player"
	"github.com/ivlev/framepick/internal/state"
	"github.com/ivlev/framepick/internal/system"
	"github.com/ivlev/framepick/internal/video"
)

func main() {
	videoPtr := flag.String("video", "", "Video to open on start (a folder opens its newest video)")
	saveDirPtr := flag.String("save-dir", "", "Folder to save frames into")
	settingsPtr := flag.String("settings", config.DefaultSettingsFile(), "Path to settings.yaml")
	logLevelPtr := flag.String("log-level", "", "Log level: debug, info, warn, error")
	decoderPtr := flag.String("decoder", "", "Decoder backend: ffmpeg, opencv")

	flag.Parse()

	cfg, err := config.Load(*settingsPtr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "framepick: %v\n", err)
		os.Exit(1)
	}
	if *logLevelPtr != "" {
		cfg.LogLevel = *logLevelPtr
	}
	if *decoderPtr != "" {
		cfg.Decoder = *decoderPtr
	}
	if err := cfg.Normalize(); err != nil {
		fmt.Fprintf(os.Stderr, "framepick: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "framepick: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Decoder == "ffmpeg" {
		for _, bin := range []string{cfg.FFmpegPath, cfg.FFprobePath} {
			v, err := system.ToolVersion(context.Background(), bin)
			if err != nil {
				log.Warn("tool not available", zap.String("bin", bin), zap.Error(err))
				continue
			}
			log.Debug("tool found", zap.String("bin", bin), zap.String("version", v))
		}
	}

	opener, err := video.New(cfg.Decoder, video.Options{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Logger:      log.Named("video"),
	})
	if err != nil {
		log.Fatal("decoder unavailable", zap.String("decoder", cfg.Decoder), zap.Error(err))
	}

	win := gui.New(gui.Options{
		PreviewWidth:  cfg.PreviewWidth,
		PreviewHeight: cfg.PreviewHeight,
		ShowStats:     cfg.ShowStats,
		WatchSaveDir:  cfg.WatchSaveDir,
		Logger:        log.Named("gui"),
	})

	ctrl := player.New(player.Options{
		Opener: opener,
		Writer: export.NewJPEGWriter(cfg.JPEGQuality),
		Store:  state.NewStore(cfg.StateFile),
		View:   win,
		Ticker: win.Ticker(),
		Logger: log.Named("player"),
	})
	win.SetController(ctrl)

	log.Info("starting",
		zap.String("decoder", cfg.Decoder),
		zap.String("state", cfg.StateFile),
	)

	win.Run(func() error {
		if *saveDirPtr != "" {
			ctrl.SetSaveDirectory(config.ExpandPath(*saveDirPtr))
		}
		if *videoPtr == "" {
			return ctrl.Restore()
		}
		ctrl.RefreshNextIndex()
		path, err := system.ResolveVideo(config.ExpandPath(*videoPtr))
		if err != nil {
			return &player.Error{Code: player.CodeOpenFailed, Path: *videoPtr, Err: err}
		}
		return ctrl.OpenVideo(path)
	})
}
