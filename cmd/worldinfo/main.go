package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"terramap/internal/config"
	"terramap/internal/defs"
	"terramap/internal/export"
	"terramap/internal/playermap"
	"terramap/internal/worldfile"
)

func main() {
	var (
		settingsPath = flag.String("settings", "", "path to settings.yaml (optional)")
		defsDir      = flag.String("defs", "", "definitions directory (default from settings)")
		playerPath   = flag.String("player", "", "player save file; enables the explored overlay")
		snapPath     = flag.String("snapshot", "", "write a zstd summary snapshot to this path")
		quiet        = flag.Bool("q", false, "suppress progress output")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <world file>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	worldPath := flag.Arg(0)

	logger := log.New(os.Stderr, "[worldinfo] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*settingsPath)
	if err != nil {
		logger.Fatalf("load settings: %v", err)
	}
	dir := cfg.DefsDir
	if *defsDir != "" {
		dir = *defsDir
	}
	tables, err := defs.Load(dir)
	if err != nil {
		logger.Fatalf("load definitions from %s: %v", dir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dec := &worldfile.Decoder{Defs: tables}
	if !*quiet {
		dec.Progress = progressPrinter(logger)
	}

	w, err := dec.Decode(ctx, worldPath)
	if err != nil {
		logger.Fatalf("decode %s: %v", worldPath, err)
	}
	if *playerPath != "" {
		if err := playermap.Overlay(w, *playerPath); err != nil {
			logger.Fatalf("player overlay: %v", err)
		}
	}

	s := export.Summarize(w)
	printSummary(s, *playerPath != "")

	if *snapPath != "" {
		if err := export.WriteSnapshot(*snapPath, s); err != nil {
			logger.Fatalf("write snapshot: %v", err)
		}
		logger.Printf("wrote snapshot %s", *snapPath)
	}
}

// progressPrinter logs each stage once and tile progress in 10%
// buckets. lastPct starts below any real bucket so 0% is printed too.
func progressPrinter(logger *log.Logger) worldfile.ProgressFunc {
	lastPct := -10
	return func(stage string, pct int) {
		if stage != "tiles" {
			logger.Printf("reading %s", stage)
			return
		}
		if pct/10 != lastPct/10 {
			logger.Printf("reading tiles: %d%%", pct)
		}
		lastPct = pct
	}
}

func printSummary(s export.Summary, overlaid bool) {
	fmt.Printf("%s (world %d, file version %d)\n", s.Name, s.WorldID, s.FileVersion)
	if s.GUID != "" {
		fmt.Printf("  guid         %s\n", s.GUID)
	}
	fmt.Printf("  size         %dx%d tiles\n", s.TilesWide, s.TilesHigh)
	fmt.Printf("  spawn        %d,%d (ground level %.0f)\n", s.SpawnX, s.SpawnY, s.GroundLevel)
	fmt.Printf("  hardmode     %v\n", s.Hardmode)
	fmt.Printf("  chests       %d\n", len(s.Chests))
	fmt.Printf("  signs        %d\n", len(s.Signs))
	fmt.Printf("  npcs         %d\n", len(s.NPCs))
	fmt.Printf("  entities     %d dummies, %d item frames, %d sensors\n",
		s.Entities.TrainingDummies, s.Entities.ItemFrames, s.Entities.LogicSensors)
	if len(s.Kills) > 0 || s.SightedCreatures > 0 {
		fmt.Printf("  bestiary     %d kill entries, %d sighted, %d chats\n",
			len(s.Kills), s.SightedCreatures, s.UnlockedChats)
	}
	if overlaid {
		fmt.Printf("  explored     %.1f%%\n", s.ExploredPct)
	}
}
