package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"voxelbrush.dev/internal/config"
	"voxelbrush.dev/internal/persistence/indexdb"
	"voxelbrush.dev/internal/persistence/journal"
	"voxelbrush.dev/internal/sim/brush"
	"voxelbrush.dev/internal/sim/catalogs"
	"voxelbrush.dev/internal/sim/place"
	"voxelbrush.dev/internal/sim/protect"
	"voxelbrush.dev/internal/sim/world"
	"voxelbrush.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		configPath = flag.String("config", "./configs/server.yaml", "server config path")
		configDir  = flag.String("configs", "./configs", "catalog directory")
		schemaDir  = flag.String("schemas", "./schemas", "schema directory")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		seed       = flag.Int64("seed", 0, "world seed override (0 keeps config value)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(*addr) != "" {
		cfg.Listen = *addr
	}
	if strings.TrimSpace(*dataDir) != "" {
		cfg.DataDir = *dataDir
	}
	if *seed != 0 {
		cfg.World.Seed = *seed
	}

	cats, err := catalogs.Load(*configDir, *schemaDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	w, err := world.New(worldConfig(cfg), cats)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	// Placement interception: spawn guard first, then the brush runtime.
	brushLog := log.New(os.Stdout, "[brush] ", log.LstdFlags|log.Lmicroseconds)
	mgr, err := brush.New(brush.Config{
		Reach:    cfg.Brush.Reach,
		MaxCells: cfg.Brush.MaxCells,
		Tool:     cfg.Brush.Tool,
	}, w, w, w, cats, brushLog)
	if err != nil {
		logger.Fatalf("brush: %v", err)
	}
	guard := &protect.SpawnGuard{Radius: cfg.Protect.SpawnRadius}
	w.SetChain(place.NewChain(guard, mgr))
	w.SetBrush(mgr)
	w.SetLogger(log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds))

	worldDir := filepath.Join(cfg.DataDir, "worlds", cfg.World.ID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	tickJ := journal.NewTickJournal(worldDir)
	auditJ := journal.NewAuditJournal(worldDir)
	defer tickJ.Close()
	defer auditJ.Close()

	persistLog := log.New(os.Stdout, "[persist] ", log.LstdFlags|log.Lmicroseconds)
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		idx.SetMeta("world_id", cfg.World.ID)
		idx.SetMeta("seed", cfg.World.Seed)
		idx.SetMeta("catalog_digests", map[string]string{
			"blocks":  cats.Blocks.PaletteDigest,
			"items":   cats.Items.PaletteDigest,
			"brushes": cats.Brushes.Digest,
		})
		persistLog.Printf("index db at %s", filepath.Join(worldDir, "index", "world.sqlite"))
	}

	if idx != nil {
		w.SetTickLogger(multiTickLogger{a: tickJ, b: idx})
		w.SetAuditLogger(multiAuditLogger{a: auditJ, b: idx})
		w.SetPlacementLogger(idx)
		w.SetAckLogger(idx)
	} else {
		w.SetTickLogger(tickJ)
		w.SetAuditLogger(auditJ)
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	wsLog := log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)
	wsServer := ws.NewServer(w, wsLog)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(rw, "# HELP voxelbrush_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE voxelbrush_world_tick gauge\n")
		fmt.Fprintf(rw, "voxelbrush_world_tick{world=%q} %d\n", cfg.World.ID, w.CurrentTick())
	})
	mux.HandleFunc("/v1/ws", wsServer.Handler())

	srv := &http.Server{Addr: cfg.Listen, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Printf("world=%s seed=%d tick_rate=%dHz listening on %s", cfg.World.ID, cfg.World.Seed, cfg.World.TickRateHz, cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("http: %v", err)
	}
	logger.Printf("shutdown complete")
}

func worldConfig(cfg config.Config) world.WorldConfig {
	return world.WorldConfig{
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
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// multiTickLogger fans tick entries out to the journal and the index.
type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(e world.TickLogEntry) error {
	errA := m.a.WriteTick(e)
	errB := m.b.WriteTick(e)
	if errA != nil {
		return errA
	}
	return errB
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(e world.AuditEntry) error {
	errA := m.a.WriteAudit(e)
	errB := m.b.WriteAudit(e)
	if errA != nil {
		return errA
	}
	return errB
}
