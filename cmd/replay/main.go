package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"voxelbrush.dev/internal/config"
	"voxelbrush.dev/internal/persistence/journal"
	"voxelbrush.dev/internal/sim/brush"
	"voxelbrush.dev/internal/sim/catalogs"
	"voxelbrush.dev/internal/sim/place"
	"voxelbrush.dev/internal/sim/protect"
	"voxelbrush.dev/internal/sim/world"
)

// replay rebuilds a world from its tick journal and verifies the recorded
// per-tick digests. The journal is the source of truth: reconstruction always
// starts from genesis with the same config, catalogs, and interception chain
// the server ran with.
func main() {
	var (
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		configPath = flag.String("config", "./configs/server.yaml", "server config path")
		configDir  = flag.String("configs", "./configs", "catalog directory")
		schemaDir  = flag.String("schemas", "./schemas", "schema directory")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying digests from tick (inclusive)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, 0 = end of journal)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if strings.TrimSpace(*dataDir) != "" {
		cfg.DataDir = *dataDir
	}

	cats, err := catalogs.Load(*configDir, *schemaDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}

	w, err := newWorld(cfg, cats)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ticksDir := filepath.Join(cfg.DataDir, "worlds", cfg.World.ID, "ticks")
	var checked, stepped uint64
	err = journal.ScanTicks(ticksDir, func(entry world.TickLogEntry) error {
		if *toTick != 0 && entry.Tick > *toTick {
			return errDone
		}
		if entry.Tick != w.CurrentTick() {
			return fmt.Errorf("tick mismatch: journal=%d world=%d", entry.Tick, w.CurrentTick())
		}

		joins := make([]world.JoinRequest, 0, len(entry.Joins))
		for _, j := range entry.Joins {
			joins = append(joins, world.JoinRequest{Name: j.Name})
		}
		acts := make([]world.ActionEnvelope, 0, len(entry.Actions))
		for _, ra := range entry.Actions {
			acts = append(acts, world.ActionEnvelope{AgentID: ra.AgentID, Act: ra.Act})
		}

		tick, digest := w.StepOnce(joins, entry.Leaves, acts)
		if tick != entry.Tick {
			return fmt.Errorf("stepped tick %d for journal entry %d", tick, entry.Tick)
		}
		stepped++
		if tick >= *fromTick {
			checked++
			if digest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
			}
		}
		return nil
	})
	if err != nil && err != errDone {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: world=%s stepped=%d ticks checked=%d digests\n", cfg.World.ID, stepped, checked)
}

var errDone = fmt.Errorf("done")

// newWorld wires the sim exactly as cmd/server does, minus transports and
// persistence. The digest only reproduces if the interception chain matches.
func newWorld(cfg config.Config, cats *catalogs.Catalogs) (*world.World, error) {
	w, err := world.New(world.WorldConfig{
		ID:          cfg.World.ID,
		TickRateHz:  cfg.World.TickRateHz,
		Height:      cfg.World.Height,
		Seed:        cfg.World.Seed,
		BoundaryR:   cfg.World.BoundaryR,
		MoveStepMax: cfg.World.MoveStepMax,
		PlaceReach:  cfg.World.PlaceReach,
		RateLimits: world.RateLimitConfig{
			MoveWindowTicks:  cfg.Rates.MoveWindowTicks,
			MoveMax:          cfg.Rates.MoveMax,
			BrushWindowTicks: cfg.Rates.BrushWindowTicks,
			BrushMax:         cfg.Rates.BrushMax,
			PlaceWindowTicks: cfg.Rates.PlaceWindowTicks,
			PlaceMax:         cfg.Rates.PlaceMax,
		},
	}, cats)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	mgr, err := brush.New(brush.Config{
		Reach:    cfg.Brush.Reach,
		MaxCells: cfg.Brush.MaxCells,
		Tool:     cfg.Brush.Tool,
	}, w, w, w, cats, log.New(os.Stderr, "[brush] ", log.LstdFlags))
	if err != nil {
		return nil, fmt.Errorf("brush: %w", err)
	}
	guard := &protect.SpawnGuard{Radius: cfg.Protect.SpawnRadius}
	w.SetChain(place.NewChain(guard, mgr))
	w.SetBrush(mgr)
	return w, nil
}
