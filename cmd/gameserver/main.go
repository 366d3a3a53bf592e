// Package main provides the game server binary: a TCP server hosting
// real-time drawing-and-guessing rooms.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/fl-w/termibbl/internal/config"
	"github.com/fl-w/termibbl/internal/game"
	"github.com/fl-w/termibbl/internal/gameserver"
	"github.com/fl-w/termibbl/internal/observability"
	"github.com/fl-w/termibbl/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	words := loadWords(cfg.Game, logger)
	logger.Info("word list ready", zap.Int("words", len(words)))

	srv := gameserver.NewServer(cfg, words, logger)
	acceptor := gameserver.NewAcceptor(cfg.Listen, srv, logger)

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("orchestrator", &server.FuncService{
		StartFn: func() error {
			return srv.Run(context.Background())
		},
		StopFn: func() {
			srv.Shutdown()
		},
	})

	lifecycle.Add("acceptor", &server.FuncService{
		StartFn: func() error {
			return acceptor.ListenAndServe()
		},
		StopFn: func() {
			acceptor.Stop()
		},
	})

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Listen.Addr()),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// loadWords builds the word list from the configured extras, the word pack
// directory, and the built-in fallback list.
func loadWords(cfg config.GameConfig, logger *zap.Logger) []string {
	if cfg.OnlyCustomWords {
		return game.MergeWords(cfg.Words)
	}

	lists := [][]string{cfg.Words}
	if cfg.WordsDir != "" {
		if info, err := os.Stat(cfg.WordsDir); err == nil && info.IsDir() {
			packs, err := game.LoadWordPacksFromDir(cfg.WordsDir)
			if err != nil {
				logger.Fatal("loading word packs",
					zap.String("dir", cfg.WordsDir), zap.Error(err))
			}
			for _, pack := range packs {
				logger.Info("word pack loaded",
					zap.String("pack", pack.Name),
					zap.Int("words", len(pack.Words)),
				)
				lists = append(lists, pack.Words)
			}
		} else {
			logger.Warn("word pack directory not found, skipping",
				zap.String("dir", cfg.WordsDir))
		}
	}

	words := game.MergeWords(lists...)
	if len(words) == 0 {
		words = game.DefaultWords
	}
	return words
}
