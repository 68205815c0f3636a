package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travelmate/internal/config"
	"travelmate/internal/httpapi"
	"travelmate/internal/tui"
)

func main() {
	server := flag.String("server", "", "chat with a running server, e.g. http://localhost:8080")
	style := flag.String("style", "", "glamour style (dark, light, notty); empty detects the terminal")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		backend tui.Backend
		deps    *httpapi.Dependencies
		err     error
	)

	if *server != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		backend, err = tui.DialRemote(dialCtx, *server, nil)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		deps, err = httpapi.NewDependencies(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		backend = tui.NewLocalBackend(deps.Chat)
	}

	runErr := tui.Run(ctx, backend, tui.Options{GlamourStyle: *style, StartOpen: true})

	backend.Close()
	if deps != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := deps.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "WARN: shutdown: %v\n", err)
		}
	}

	if runErr != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", runErr)
		os.Exit(1)
	}
}
