package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"talosync.gg/internal/config"
	"talosync.gg/internal/gamelink"
	"talosync.gg/internal/hud"
	"talosync.gg/internal/persistence/journal"
	"talosync.gg/internal/persistence/slotdb"
	"talosync.gg/internal/session"
	syncer "talosync.gg/internal/sync"
)

// Host frame rate the tick loop emulates. The gate inside the core keeps
// heavy work at its own slower cadence.
const frameInterval = 16 * time.Millisecond

const persistInterval = 2 * time.Second

func main() {
	var (
		configPath = flag.String("config", "./bridge.yaml", "config file path")
		addr       = flag.String("addr", "", "server address (overrides config)")
		slotName   = flag.String("slot", "", "slot name (overrides config)")
		offline    = flag.Bool("offline", false, "run without a server (overrides config)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bridge] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Address = *addr
	}
	if *slotName != "" {
		cfg.Server.SlotName = *slotName
	}
	if *offline {
		cfg.Offline = true
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	slotKey := cfg.Server.SlotName
	if slotKey == "" {
		slotKey = "offline"
	}

	store, err := slotdb.Open(filepath.Join(cfg.DataDir, "slots.db"))
	if err != nil {
		logger.Fatalf("open slot store: %v", err)
	}
	defer store.Close()

	jrnl := journal.New(cfg.DataDir, slotKey)
	defer jrnl.Close()

	world := gamelink.NewMemWorld()
	if cfg.Offline {
		seedDemoScene(world)
	}

	state := syncer.NewState()
	state.SetDeathLinkEnabled(cfg.Options.DeathLink)
	state.SetRandomizePurpleSigils(cfg.Options.RandomizePurpleSigils)
	state.SetRandomizeStars(cfg.Options.RandomizeStars)
	state.SetReusableTetrominoes(cfg.Options.ReusableTetrominos)

	ids := syncer.NewIdentifierMap(logger)
	progress := syncer.NewProgress()

	saved, err := store.Load(slotKey)
	if err != nil {
		logger.Fatalf("load slot progress: %v", err)
	}
	for _, k := range saved.Granted {
		progress.Grant(k)
	}
	progress.SeedChecked(saved.Checked)
	logger.Printf("slot %q resumed: %d granted, %d checked", slotKey, len(saved.Granted), len(saved.Checked))

	notifier := hud.NewNotifier(logger, world)

	var client syncer.Client
	var sess *session.Session
	if cfg.Offline {
		client = session.NewOffline(logger)
		logger.Printf("offline mode, no server connection")
	} else {
		sess = session.New(session.Config{
			Address:   cfg.Server.Address,
			SlotName:  cfg.Server.SlotName,
			Password:  cfg.Server.Password,
			DeathLink: cfg.Options.DeathLink,
		}, logger)
		sess.Start()
		defer sess.Close()
		client = sess
	}

	core := syncer.NewCore(logger, world, client, state, progress, ids, notifier, syncer.CoreConfig{
		TickInterval:       cfg.TickInterval(),
		TransitionCooldown: cfg.TransitionCooldown(),
		GoalWarmup:         cfg.GoalWarmup(),
		PlayerName:         slotKey,
	})
	core.SetRecorder(jrnl)
	core.SetRefreshFunc(func() {
		p, err := store.Load(slotKey)
		if err != nil {
			logger.Printf("refresh slot progress: %v", err)
			return
		}
		for _, k := range p.Granted {
			progress.Grant(k)
		}
		progress.SeedChecked(p.Checked)
	})

	ctx, cancel := signalContext()
	defer cancel()
	watchDebugSignals(ctx, core.Debug())

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	persist := time.NewTicker(persistInterval)
	defer persist.Stop()

	saver := newProgressSaver(store, slotKey, saved)

	logger.Printf("running")
	for {
		select {
		case <-ctx.Done():
			state.RequestShutdown()
			saver.flush(progress, core.GoalName())
			logger.Printf("shutting down")
			return
		case <-ticker.C:
			core.Tick()
			notifier.Tick()
			if cfg.Offline {
				world.Step()
			}
		case <-persist.C:
			saver.flush(progress, core.GoalName())
		}
	}
}

// progressSaver writes only what changed since the last flush.
type progressSaver struct {
	store   *slotdb.Store
	slotKey string

	granted map[string]bool
	checked map[int64]bool
	goal    string
}

func newProgressSaver(store *slotdb.Store, slotKey string, saved slotdb.Progress) *progressSaver {
	s := &progressSaver{
		store:   store,
		slotKey: slotKey,
		granted: map[string]bool{},
		checked: map[int64]bool{},
		goal:    saved.Goal,
	}
	for _, k := range saved.Granted {
		s.granted[k] = true
	}
	for _, id := range saved.Checked {
		s.checked[id] = true
	}
	return s
}

func (s *progressSaver) flush(progress *syncer.Progress, goal string) {
	cur := progress.Granted()
	for k := range cur {
		if !s.granted[k] {
			s.granted[k] = true
			s.store.SaveGrant(s.slotKey, k)
		}
	}
	for k := range s.granted {
		if !cur[k] {
			delete(s.granted, k)
			s.store.RevokeGrant(s.slotKey, k)
		}
	}
	for _, id := range progress.Checked() {
		if !s.checked[id] {
			s.checked[id] = true
			s.store.SaveCheck(s.slotKey, id)
		}
	}
	if goal != "" && goal != s.goal {
		s.goal = goal
		s.store.SaveGoal(s.slotKey, goal)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// watchDebugSignals maps SIGUSR1 to a collection dump and SIGUSR2 to a
// HUD test message.
func watchDebugSignals(ctx context.Context, dbg *syncer.Debug) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				switch sig {
				case syscall.SIGUSR1:
					dbg.RequestDump()
				case syscall.SIGUSR2:
					dbg.RequestHUDTest()
				}
			}
		}
	}()
}

// seedDemoScene builds a small level so offline mode has something to
// sync against: a player, a mine, a few pickups, and a HUD.
func seedDemoScene(w *gamelink.MemWorld) {
	pawn := w.AddEntity("Pawn", "TalosCharacter_0", map[string]any{
		"bIsDead": false,
	})
	root := w.AddEntity("SceneComponent", "TalosCharacter_0.RootComponent", map[string]any{
		"RelativeLocation": gamelink.Vec3{X: 0, Y: 0, Z: 100},
	})
	pawn.SetProp("RootComponent", root)
	w.AddEntity("PlayerController", "PlayerController_0", map[string]any{
		"Pawn": pawn,
	})

	mineRoot := w.AddEntity("SceneComponent", "BP_Mine_0.RootComponent", map[string]any{
		"RelativeLocation": gamelink.Vec3{X: 5000, Y: 0, Z: 100},
	})
	mine := w.AddEntity("BP_Mine_C", "BP_Mine_0", nil)
	mine.SetProp("RootComponent", mineRoot)
	mineRoot.SetFunc("SetAbsolute", func(args ...any) (any, error) { return nil, nil })

	for _, id := range []string{"DJ1", "DJ2", "MT1"} {
		w.AddEntity("BP_Tetromino_C", "BP_Tetromino_"+id, map[string]any{
			"TetrominoID": id,
			"bPickedUp":   false,
		})
	}

	hudActor := w.AddEntity("BP_SyncHUD_C", "BP_SyncHUD_0", nil)
	hudActor.SetFunc("ShowMessage", func(args ...any) (any, error) { return nil, nil })

	w.SetCollectionAvailable(true)
}
