package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		// Restore default handling so a second signal forces exit.
		<-ctx.Done()
		stop()
	}()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("locallog", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath  string
		showVersion bool
		dumpConfig  bool
		format      string
		exportPath  string
	)
	fs.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/locallog/config.yml)")
	fs.BoolVar(&showVersion, "version", false, "print version information")
	fs.BoolVar(&dumpConfig, "dump-config", false, "print the effective configuration as YAML and exit")
	fs.StringVar(&format, "format", "", "output format: text or json")
	fs.StringVar(&exportPath, "export", "", "also write decoded entries to this DuckDB database")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: locallog [flags] FILE...\n\n")
		fmt.Fprintf(stderr, "Decodes local log files. Multiple files are read in the given order as one\n")
		fmt.Fprintf(stderr, "stream (oldest rotated segment first). Use - to read standard input.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if showVersion {
		fmt.Fprintf(stdout, "locallog - Local Log Decoder\n")
		fmt.Fprintf(stdout, "  Version:    %s\n", version)
		fmt.Fprintf(stdout, "  Commit:     %s\n", commit)
		fmt.Fprintf(stdout, "  Built:      %s\n", buildTime)
		fmt.Fprintf(stdout, "  Go version: %s\n", goVersion)
		return exitOK
	}

	overrides := map[string]any{}
	if format != "" {
		overrides["format"] = format
	}
	if exportPath != "" {
		overrides["export-path"] = exportPath
	}

	cfg, err := loadConfig(configPath, overrides)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return exitError
	}

	if dumpConfig {
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		_ = enc.Close()
		return exitOK
	}

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintf(stderr, "Error: no log files given\n\n")
		fs.Usage()
		return exitUsage
	}

	if err := decodeFiles(ctx, cfg, paths, stdout); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			log.Printf("locallog: interrupted")
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}
