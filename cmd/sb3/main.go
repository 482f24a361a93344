// sb3 - a headless player for Scratch 3 projects
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/sb3vm/cloud"
	"github.com/chazu/sb3vm/manifest"
	"github.com/chazu/sb3vm/player"
	"github.com/chazu/sb3vm/project"
	"github.com/chazu/sb3vm/vm"
)

var log = commonlog.GetLogger("sb3vm.cmd")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	configDir := flag.String("config", "", "Directory containing sb3vm.toml (default: search upward from the project)")
	fps := flag.Int("fps", 0, "Frames per second (default from config, 30)")
	turbo := flag.Bool("turbo", false, "Run frames back to back")
	frames := flag.Uint64("frames", 0, "Stop after this many frames (0 = until idle)")
	keep := flag.Bool("keep", false, "Keep running after the project goes idle")
	cloudPath := flag.String("cloud", "", "Cloud variable store path (default from config)")
	noCloud := flag.Bool("no-cloud", false, "Do not persist cloud variables")
	username := flag.String("username", "", "Value reported by the username block")
	stats := flag.Bool("stats", false, "Print execution statistics on exit")
	profile := flag.Bool("profile", false, "Print the most executed opcodes on exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sb3 [options] project.sb3|project.json\n\n")
		fmt.Fprintf(os.Stderr, "Runs a Scratch 3 project headlessly. Speech is printed to stdout and\n")
		fmt.Fprintf(os.Stderr, "questions are answered from stdin.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sb3 game.sb3                    # Run until every script finishes\n")
		fmt.Fprintf(os.Stderr, "  sb3 -turbo -frames 600 game.sb3 # Run 600 frames as fast as possible\n")
		fmt.Fprintf(os.Stderr, "  sb3 -keep -stats game.sb3       # Run until interrupted, then print stats\n")
		fmt.Fprintf(os.Stderr, "  sb3 -no-cloud project.json      # Run an unpacked project without cloud storage\n")
		fmt.Fprintf(os.Stderr, "  sb3 -turbo -profile game.sb3    # Find the hottest opcodes and custom blocks\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	// Configuration
	var cfg *manifest.Config
	var err error
	if *configDir != "" {
		cfg, err = manifest.Load(*configDir)
	} else {
		cfg, err = manifest.FindAndLoad(filepath.Dir(path))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *fps, *turbo, *frames, *keep, *cloudPath, *noCloud, *username)

	verbosity := cfg.Log.Verbosity
	if *verbose {
		verbosity += 2
	}
	commonlog.Configure(verbosity, cfg.LogPath())

	if err := run(path, cfg, *stats, *profile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags overrides configuration values with explicitly set flags.
func applyFlags(cfg *manifest.Config, fps int, turbo bool, frames uint64, keep bool, cloudPath string, noCloud bool, username string) {
	if fps > 0 {
		cfg.Player.FPS = fps
	}
	if turbo {
		cfg.Player.Turbo = true
	}
	if frames > 0 {
		cfg.Player.MaxFrames = frames
	}
	if keep {
		cfg.Player.KeepRunning = true
	}
	if cloudPath != "" {
		cfg.Cloud.Store = cloudPath
		cfg.Cloud.Enabled = true
	}
	if noCloud {
		cfg.Cloud.Enabled = false
	}
	if username != "" {
		cfg.Player.Username = username
	}
}

func run(path string, cfg *manifest.Config, showStats, showProfile bool) error {
	p, err := project.Load(path)
	if err != nil {
		return err
	}

	console := player.NewConsole(os.Stdout, os.Stdin)
	host := console.Host()
	host.Username = cfg.Player.Username

	var store *cloud.Store
	if cfg.Cloud.Enabled {
		store, err = cloud.Open(cfg.StorePath())
		if err != nil {
			return err
		}
		defer store.Close()
		host.Cloud = store
	}

	opts := append(cfg.ExecutorOptions(), vm.WithHost(host))
	var prof *vm.Profiler
	if showProfile {
		prof = vm.NewProfiler()
		prof.OnHot = func(hp *vm.ProcedureProfile) {
			log.Infof("hot procedure %q in %s", hp.ProcCode, hp.Sprite)
		}
		opts = append(opts, vm.WithProfiler(prof))
	}

	ex := vm.NewExecutor(opts...)
	p.Install(ex)
	if store != nil {
		if _, err := store.Restore(ex); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ex.GreenFlag()
	res, err := player.Run(ctx, ex, player.Options{
		FPS:         cfg.Player.FPS,
		Turbo:       cfg.Player.Turbo,
		MaxFrames:   cfg.Player.MaxFrames,
		KeepRunning: cfg.Player.KeepRunning,
	})
	if err != nil {
		return err
	}

	if showStats {
		printStats(p, ex.Stats(), res)
	}
	if prof != nil {
		printProfile(prof)
	}
	return nil
}

func printStats(p *project.Project, s vm.Stats, res player.Result) {
	fmt.Fprintf(os.Stderr, "Sprites:  %d (%s blocks, %s assets)\n",
		len(p.Sprites), humanize.Comma(int64(p.BlockCount())), humanize.Bytes(p.AssetBytes()))
	fmt.Fprintf(os.Stderr, "Frames:   %s in %s (%s)\n",
		humanize.Comma(int64(res.Frames)), res.Elapsed.Round(time.Millisecond), res.Reason)
	fmt.Fprintf(os.Stderr, "Blocks:   %s executed\n", humanize.Comma(int64(s.TotalBlocks)))
	fmt.Fprintf(os.Stderr, "Threads:  %d live, %d clones\n", s.Threads, s.Clones)
	if s.Faults > 0 {
		fmt.Fprintf(os.Stderr, "Faults:   %d\n", s.Faults)
	}
}

func printProfile(prof *vm.Profiler) {
	s := prof.Stats()
	fmt.Fprintf(os.Stderr, "Opcodes:  %d distinct, %s runs\n", s.Opcodes, humanize.Comma(int64(s.OpcodeRuns)))
	for _, op := range prof.TopOpcodes(10) {
		fmt.Fprintf(os.Stderr, "  %-32s %12s\n", op.Opcode, humanize.Comma(int64(op.Count)))
	}
	if s.Procedures > 0 {
		fmt.Fprintf(os.Stderr, "Procedures: %d distinct, %s calls, %d hot\n",
			s.Procedures, humanize.Comma(int64(s.ProcedureCalls)), s.HotProcedures)
	}
}
