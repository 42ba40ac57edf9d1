// Package main is the Kensaku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/cli"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/server"
	"github.com/hyperjump/kensaku/internal/solr"
	"github.com/hyperjump/kensaku/internal/watcher"
	"github.com/hyperjump/kensaku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kensaku/config.yaml"

// loadConfig loads and validates config from path. When path is the default and a
// config.yaml exists in the current directory, that file is used instead so that
// "kensaku server" from a project dir picks up the project's config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "compile":
		runCompile()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("kensaku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// newBackend builds the Solr client, wrapped in a reply cache when cache.size > 0.
func newBackend(cfg *config.Config, logger *zap.Logger) (solr.Backend, error) {
	client, err := solr.NewClient(cfg.Solr.URL, cfg.Solr.Core, cfg.Solr.Timeout, solr.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Size > 0 {
		return solr.NewCachingBackend(client, cfg.Cache.Size, cfg.Cache.TTL), nil
	}
	return client, nil
}

// reloadHandler returns the watcher callback that swaps the engine's schema snapshot.
// A config that fails to load or validate is rejected and the current snapshot kept.
func reloadHandler(engine *search.Engine, logger *zap.Logger) func(path string) {
	return func(path string) {
		cfg, err := config.Load(path)
		if err == nil {
			err = config.Validate(cfg)
		}
		if err != nil {
			logger.Warn("config reload rejected", zap.String("path", path), zap.Error(err))
			return
		}
		engine.Reload(search.NewSnapshot(cfg))
		logger.Info("config reloaded", zap.String("path", path))
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (assembled backend requests, reloads, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	backend, err := newBackend(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create Solr client", zap.Error(err))
	}
	engine := search.NewEngine(backend, search.NewSnapshot(cfg), search.WithLogger(logger))

	watchOpts := []watcher.WatcherOption{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc, err := watcher.NewWatcher([]string{resolvedConfigPath}, reloadHandler(engine, logger), watchOpts...)
	if err != nil {
		logger.Fatal("Failed to create config watcher", zap.Error(err))
	}
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start config watcher", zap.Error(err))
	}
	defer watchSvc.Stop()

	srv := server.NewServer(engine, &cfg.Server, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
}

// searchFlags are the request flags shared by search and compile.
type searchFlags struct {
	configPath *string
	fields     *string
	group      *string
	rows       *int
	start      *int
	sort       *string
	operator   *string
	grouping   *bool
	highlight  *bool
	noSpell    *bool
	format     *string
}

func registerSearchFlags(fs *flag.FlagSet) *searchFlags {
	return &searchFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		fields:     fs.String("fields", "", "comma-separated search fields (default: the configured field group)"),
		group:      fs.String("group", "", "field group to search"),
		rows:       fs.Int("rows", -1, "number of results (default from config)"),
		start:      fs.Int("start", 0, "offset of the first result"),
		sort:       fs.String("sort", "", "sort id from the config's sorts"),
		operator:   fs.String("operator", "", "operator joining plain words: AND or OR (default from config)"),
		grouping:   fs.Bool("grouping", false, "group results by object"),
		highlight:  fs.Bool("highlight", false, "request highlighted fragments"),
		noSpell:    fs.Bool("no-spell", false, "disable the spell-corrected retry"),
		format:     fs.String("output", "text", "output format: text or json"),
	}
}

// input converts the flags and phrase into the REST body shape.
func (f *searchFlags) input(phrase string) *models.SearchInput {
	in := &models.SearchInput{
		Phrase:     phrase,
		Fields:     splitList(*f.fields),
		FieldGroup: *f.group,
		Start:      *f.start,
		Sort:       *f.sort,
		Operator:   *f.operator,
		Grouping:   *f.grouping,
		Highlight:  *f.highlight,
	}
	if *f.rows >= 0 {
		rows := *f.rows
		in.Rows = &rows
	}
	if *f.noSpell {
		off := false
		in.SpellCorrection = &off
	}
	return in
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kensaku search [flags] <phrase>\n\n")
	fmt.Fprintf(fs.Output(), "The phrase is all remaining arguments joined by spaces. Quoted parts are matched exactly;\n")
	fmt.Fprintf(fs.Output(), "quoted parts holding * or ? are matched as wildcard phrases.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  kensaku search Herzog August Bibliothek
  kensaku search --grouping --highlight '"Cod. Guelf." Helmst.'
  kensaku search --fields title-search,repository-search --rows 20 Wolfenbüttel
  kensaku search --server http://localhost:8080 --output json Psalter
`)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	flags := registerSearchFlags(fs)
	serverURL := fs.String("server", "", "Kensaku server URL (empty = query Solr directly using the config)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	phrase := buildSearchQuery(fs.Args())
	if phrase == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*flags.format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	input := flags.input(phrase)

	var response *models.SearchResponse
	if *serverURL != "" {
		response, err = searchViaHTTP(*serverURL, input)
	} else {
		response, err = searchDirect(*flags.configPath, input)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResponse(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchDirect(configPath string, input *models.SearchInput) (*models.SearchResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	backend, err := newBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	engine := search.NewEngine(backend, search.NewSnapshot(cfg), search.WithLogger(logger))
	req, err := input.Request(engine.Snapshot().RequestDefaults()...)
	if err != nil {
		return nil, err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return engine.Search(ctx, req)
}

func searchViaHTTP(serverURL string, input *models.SearchInput) (*models.SearchResponse, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runCompile() {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	flags := registerSearchFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kensaku compile [flags] <phrase>\n\nPrints the Solr parameters a search would send, without contacting Solr.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	format, err := cli.ParseOutputFormat(*flags.format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	params, err := compile(cfg, flags.input(buildSearchQuery(fs.Args())))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compile failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteParams(os.Stdout, params, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// compile assembles the backend parameters for input. No backend is needed.
func compile(cfg *config.Config, input *models.SearchInput) (*solr.Params, error) {
	engine := search.NewEngine(nil, search.NewSnapshot(cfg))
	req, err := input.Request(engine.Snapshot().RequestDefaults()...)
	if err != nil {
		return nil, err
	}
	return engine.Compile(req)
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "config.yaml", "where to write the config file")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*path, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", *path)
}

func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return config.Save(path, config.Default())
}

// buildSearchQuery joins all positional args with spaces so multi-word phrases
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// argsReorder moves flags that appear after the phrase to the front so flag.Parse
// sees them; the flag package stops at the first non-flag argument. Phrase words
// starting with - must follow "--".
func argsReorder(args []string) []string {
	for i, a := range args {
		if a == "--" {
			return args
		}
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printUsage() {
	fmt.Println(`kensaku - search middleware for Solr manuscript catalogues

Usage:
  kensaku server [flags]            Start the HTTP server
  kensaku search [flags] <phrase>   Search the catalogue
  kensaku compile [flags] <phrase>  Print the Solr parameters for a search
  kensaku init [flags]              Write a default config file
  kensaku version                   Show version
  kensaku help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kensaku/config.yaml)
  --debug            Enable debug logging (assembled backend requests, reloads, etc.)

Search and Compile Flags:
  --config string    Config file path
  --server string    Kensaku server URL; empty queries Solr directly (search only)
  --fields string    Comma-separated search fields
  --group string     Field group to search
  --rows int         Number of results (default from config)
  --start int        Offset of the first result
  --sort string      Sort id from the config
  --operator string  AND or OR between plain words
  --grouping         Group results by object
  --highlight        Request highlighted fragments
  --no-spell         Disable the spell-corrected retry
  --output string    Output format: text or json (default: text)

Init Flags:
  --config string    Where to write the config (default: config.yaml)
  --force            Overwrite an existing file

Examples:
  kensaku init
  kensaku server
  kensaku search Herzog August Bibliothek
  kensaku search --grouping --output json '"Cod. Guelf." Psalter'
  kensaku compile --fields title-search Wolfenbüttel`)
}
