package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"terramap/internal/config"
	"terramap/internal/defs"
	"terramap/internal/export"
	"terramap/internal/indexdb"
	"terramap/internal/worldfile"
)

func main() {
	var (
		settingsPath = flag.String("settings", "", "path to settings.yaml (optional)")
		worldsDir    = flag.String("worlds", "", "directory of .wld files (default from settings)")
		dbPath       = flag.String("db", "", "sqlite index path (default from settings)")
		prune        = flag.Bool("prune", false, "drop rows for world files that no longer exist")
		list         = flag.Bool("list", false, "print the index instead of scanning")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[worldindex] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*settingsPath)
	if err != nil {
		logger.Fatalf("load settings: %v", err)
	}
	if *worldsDir == "" {
		*worldsDir = cfg.WorldsDir
	}
	if *dbPath == "" {
		*dbPath = cfg.IndexPath
	}

	idx, err := indexdb.Open(*dbPath)
	if err != nil {
		logger.Fatalf("open index %s: %v", *dbPath, err)
	}
	defer idx.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *list {
		rows, err := idx.List(ctx)
		if err != nil {
			logger.Fatalf("list: %v", err)
		}
		for _, r := range rows {
			fmt.Printf("%-24s %6dx%-5d v%-3d chests=%-3d npcs=%-3d %s\n",
				r.Name, r.TilesWide, r.TilesHigh, r.FileVersion, r.Chests, r.NPCs, r.Path)
		}
		return
	}

	tables, err := defs.Load(cfg.DefsDir)
	if err != nil {
		logger.Fatalf("load definitions: %v", err)
	}
	dec := &worldfile.Decoder{Defs: tables}

	entries, err := os.ReadDir(*worldsDir)
	if err != nil {
		logger.Fatalf("read %s: %v", *worldsDir, err)
	}
	scanned, failed := 0, 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wld") {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		path := filepath.Join(*worldsDir, e.Name())
		w, err := dec.Decode(ctx, path)
		if err != nil {
			logger.Printf("skip %s: %v", e.Name(), err)
			failed++
			continue
		}
		if err := idx.Upsert(ctx, path, export.Summarize(w)); err != nil {
			logger.Fatalf("index %s: %v", e.Name(), err)
		}
		scanned++
	}
	logger.Printf("indexed %d worlds (%d failed)", scanned, failed)

	if *prune {
		n, err := idx.Prune(ctx)
		if err != nil {
			logger.Fatalf("prune: %v", err)
		}
		logger.Printf("pruned %d stale rows", n)
	}
}
