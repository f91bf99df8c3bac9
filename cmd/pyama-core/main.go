package main

/*
pyama-core runs the PyAMA-Core batch microscopy pipeline: copy, segment,
estimate background, track, and extract features for a range of fields of
view, producing per-FOV trace CSVs and a processing_results.yaml manifest.
*/

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"gopkg.in/yaml.v3"

	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/feature"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/microscopy"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/perr"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/pipectx"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/scheduler"
	"github.com/SoftmatterLMU-RaedlerGroup/pyama-sub000/stackstore"
)

const (
	exitConfigError = 2
	exitIoError     = 3
	exitCancelled   = 4
	exitPartial     = 5
)

var (
	configPath = flag.String("config", "", "Path to a YAML run configuration (ProcessingContext plus input_path/fov_start/fov_end)")
	synthetic  = flag.Bool("synthetic", false, "Run against an in-memory synthetic microscopy source instead of input_path, for smoke testing")
)

// fileConfig is the on-disk run configuration: a processing context plus
// the run-scoped fields (input path, FOV range) that aren't part of it.
type fileConfig struct {
	InputPath       string `yaml:"input_path"`
	FOVStart        int    `yaml:"fov_start"`
	FOVEnd          int    `yaml:"fov_end"`
	pipectx.Context `yaml:",inline"`
}

func pyamaUsage() {
	fmt.Printf("Usage: %s -config <run.yaml>\n", os.Args[0])
	fmt.Printf("       %s -synthetic -config <run.yaml>  (smoke test: synthetic reader, config still supplies output_dir/params/channels)\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = pyamaUsage
	flag.Parse()
	shutdown := grail.Init()
	defer shutdown()

	if *configPath == "" {
		log.Fatalf("missing required -config")
	}
	raw, err := os.ReadFile(*configPath)
	if err != nil {
		log.Error.Printf("read config: %v", err)
		os.Exit(exitIoError)
	}
	cfg := fileConfig{Context: pipectx.Context{Params: pipectx.DefaultParams()}}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		log.Error.Printf("parse config: %v", err)
		os.Exit(exitConfigError)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			log.Printf("received interrupt, cancelling")
			cancel()
		}
	}()
	defer func() {
		signal.Stop(sigCh)
		close(sigCh)
		cancel()
	}()

	var reader microscopy.Reader
	basename := "synthetic"
	if *synthetic {
		reader, err = syntheticReader()
	} else {
		basename = strings.TrimSuffix(filepath.Base(cfg.InputPath), filepath.Ext(cfg.InputPath))
		reader, err = defaultOpener(ctx, cfg.InputPath)
	}
	if err != nil {
		log.Error.Printf("open microscopy source: %v", err)
		os.Exit(exitIoError)
	}
	defer reader.Close()

	store := stackstore.Store{OutputDir: cfg.Context.OutputDir, Basename: basename}
	sched := scheduler.New(store, feature.Default)

	idx, runErr := sched.Run(ctx, reader, cfg.Context, cfg.FOVStart, cfg.FOVEnd, logObserver{})
	if runErr != nil {
		log.Error.Printf("%v", runErr)
		switch perr.KindOf(runErr) {
		case perr.ConfigError:
			os.Exit(exitConfigError)
		case perr.Cancelled:
			os.Exit(exitCancelled)
		default:
			os.Exit(exitIoError)
		}
	}
	if idx.AnyIncomplete() {
		os.Exit(exitPartial)
	}
	log.Debug.Printf("exiting")
}

// defaultOpener is the injection point for a real ND2/CZI decoder. Format
// decoding is an external collaborator capability not implemented here.
func defaultOpener(ctx context.Context, path string) (microscopy.Reader, error) {
	return nil, perr.E(perr.ConfigError, "no microscopy.Opener configured; run with -synthetic or link one in", nil)
}
