package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"travelmate/internal/config"
	"travelmate/internal/models"
	"travelmate/internal/providers"
	"travelmate/internal/settings"
	"travelmate/internal/storage"
	"travelmate/internal/utils"
)

type options struct {
	provider    string
	apiKey      string
	enable      bool
	disable     bool
	test        bool
	interactive bool
	genKey      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.provider, "provider", "", "provider to activate (openai or anthropic)")
	flag.StringVar(&opts.apiKey, "api-key", "", "credential to store for the provider (or TRAVELMATE_API_KEY)")
	flag.BoolVar(&opts.enable, "enable", false, "turn hosted AI answers on")
	flag.BoolVar(&opts.disable, "disable", false, "turn hosted AI answers off")
	flag.BoolVar(&opts.test, "test", false, "probe the provider with the given or stored credential")
	flag.BoolVar(&opts.interactive, "i", false, "edit settings with an interactive form")
	flag.BoolVar(&opts.genKey, "genkey", false, "print a new CREDENTIAL_ENCRYPTION_KEY and exit")
	flag.Parse()

	if opts.genKey {
		key, err := storage.GenerateKey(32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)
		return
	}

	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("TRAVELMATE_API_KEY")
	}
	if opts.enable && opts.disable {
		fmt.Fprintln(os.Stderr, "ERROR: -enable and -disable are mutually exclusive")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("Opening %s settings store...\n", cfg.Storage.Backend)
	store, err := storage.Open(ctx, cfg.StoreConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to open settings store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	settingOpts := []settings.Option{settings.WithHTTPClient(providers.NewHTTPClient(cfg.Provider.RequestTimeout))}
	if cfg.Security.EncryptionKey != "" {
		enc, err := storage.NewEncryptionFromSecret(cfg.Security.EncryptionKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Invalid CREDENTIAL_ENCRYPTION_KEY: %v\n", err)
			os.Exit(1)
		}
		settingOpts = append(settingOpts, settings.WithSealer(enc))
	}

	conf, err := settings.New(ctx, store, cfg.SettingsDefaults(), settingOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load settings: %v\n", err)
		os.Exit(1)
	}

	if opts.interactive {
		if err := runForm(conf, &opts); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Println("Aborted, nothing changed")
				return
			}
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
	}

	if err := apply(ctx, conf, opts); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	if opts.test {
		provider := conf.ActiveProvider()
		if opts.provider != "" {
			provider = models.ProviderType(opts.provider)
		}
		fmt.Printf("Testing connection to %s...\n", provider)
		if !conf.TestConnection(ctx, provider, opts.apiKey) {
			fmt.Fprintln(os.Stderr, "Connection test FAILED")
			os.Exit(1)
		}
		fmt.Println("Connection test succeeded")
	}

	printSettings(conf)
}

// apply persists the requested changes. A key without a provider belongs to the active one.
func apply(ctx context.Context, conf *settings.Config, opts options) error {
	if opts.apiKey != "" && !opts.test {
		if err := conf.SetCredential(ctx, opts.apiKey, models.ProviderType(opts.provider)); err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}
		fmt.Println("Credential stored")
	} else if opts.provider != "" {
		ok, err := conf.SetActiveProvider(ctx, opts.provider)
		if err != nil {
			return fmt.Errorf("failed to store provider: %w", err)
		}
		if !ok {
			return fmt.Errorf("unknown provider %q (expected openai or anthropic)", opts.provider)
		}
	}

	switch {
	case opts.enable:
		return conf.SetEnabled(ctx, true)
	case opts.disable:
		return conf.SetEnabled(ctx, false)
	}
	return nil
}

func runForm(conf *settings.Config, opts *options) error {
	provider := string(conf.ActiveProvider())
	if !models.ProviderType(provider).Valid() {
		provider = string(models.ProviderTypeOpenAI)
	}
	enabled := conf.Enabled()
	var apiKey string

	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("AI provider").
			Options(
				huh.NewOption("OpenAI", string(models.ProviderTypeOpenAI)),
				huh.NewOption("Anthropic", string(models.ProviderTypeAnthropic)),
			).
			Value(&provider),
		huh.NewInput().
			Title("API key (leave empty to keep the stored one)").
			EchoMode(huh.EchoModePassword).
			Value(&apiKey),
		huh.NewConfirm().
			Title("Answer with hosted AI?").
			Value(&enabled),
	)).Run()
	if err != nil {
		return err
	}

	opts.provider = provider
	opts.apiKey = strings.TrimSpace(apiKey)
	opts.enable = enabled
	opts.disable = !enabled
	return nil
}

func printSettings(conf *settings.Config) {
	snap := conf.Snapshot()
	fingerprint := utils.Fingerprint(snap.Settings.Credential)
	if fingerprint == "" {
		fingerprint = "(none)"
	}

	fmt.Println()
	fmt.Printf("  enabled:     %t\n", snap.Enabled)
	fmt.Printf("  provider:    %s\n", snap.Provider)
	fmt.Printf("  model:       %s\n", snap.Settings.Model)
	fmt.Printf("  endpoint:    %s\n", snap.Settings.Endpoint)
	fmt.Printf("  credential:  %s\n", fingerprint)
}
