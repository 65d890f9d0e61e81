// main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/angelware-net/spectre/internal/app"
	"github.com/angelware-net/spectre/internal/config"
	"github.com/angelware-net/spectre/internal/util"
)

var (
	showHelp = flag.Bool("h", false, "Show help")
	version  = flag.Bool("version", false, "Show version")
	dataDir  = flag.String("data", "", "Data directory (default: ./data)")
	cfgPath  = flag.String("config", "", "Config file path (default: <data>/config.json)")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("Spectre v%s\n", appVersion)
		return
	}
	if *showHelp {
		showUsage()
		return
	}

	dir := *dataDir
	if dir == "" {
		dir = "data"
	}
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatalf("MAIN: getwd: %v", err)
	}
	dir = util.ResolvePath(cwd, dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("MAIN: create data dir: %v", err)
	}

	path := *cfgPath
	if path == "" {
		path = filepath.Join(dir, "config.json")
	}
	cfg, created, err := config.Ensure(path)
	if err != nil {
		log.Fatalf("MAIN: load config: %v", err)
	}
	if created {
		log.Printf("MAIN: wrote default config to %s", path)
	}

	a, err := app.New(cfg, dir)
	if err != nil {
		log.Fatalf("MAIN: init: %v", err)
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("MAIN: %v", err)
	}
	log.Println("MAIN: shutting down")
}

func showUsage() {
	fmt.Println("Spectre - friends presence tracker")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  spectre [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
