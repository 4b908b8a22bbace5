package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"speedy-reader/internal/app"
	"speedy-reader/internal/config"
	"speedy-reader/internal/content"
	"speedy-reader/internal/feed"
	"speedy-reader/internal/raindrop"
	"speedy-reader/internal/storage"
	"speedy-reader/internal/summarize"
	"speedy-reader/internal/tui"
)

func main() {
	importPath := flag.String("import", "", "import feeds from an OPML file and exit")
	refreshOnly := flag.Bool("refresh", false, "refresh all feeds and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	repo, err := storage.NewRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err = repo.Init(ctx)
	cancel()
	if err != nil {
		log.Fatalf("storage schema error: %v", err)
	}

	service := app.NewService(feed.NewFetcher(), repo)

	if *importPath != "" {
		runImport(service, *importPath)
		return
	}
	if *refreshOnly {
		runRefresh(service)
		return
	}

	runInteractive(cfg, service, repo)
}

func runImport(service *app.Service, path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	added, err := service.ImportOPML(ctx, path)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}
	fmt.Printf("Imported %d feeds\n", added)
}

func runRefresh(service *app.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	articles, err := service.RefreshAll(ctx)
	if err != nil {
		log.Fatalf("refresh failed: %v", err)
	}
	fmt.Printf("Refreshed: %d articles\n", len(articles))
}

func runInteractive(cfg config.Config, service *app.Service, repo *storage.Repository) {
	// The TUI owns the terminal; background fetch noise goes nowhere and
	// failures surface as status text instead.
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	articles, err := repo.ListArticles(ctx)
	cancel()
	if err != nil {
		log.Fatalf("cannot load articles: %v", err)
	}

	opts := tui.Options{
		Service:         service,
		Store:           repo,
		Resolver:        content.NewFetcher(),
		DefaultTags:     cfg.DefaultTags,
		RefreshInterval: time.Duration(cfg.RefreshIntervalMinutes) * time.Minute,
	}
	if cfg.AnthropicAPIKey != "" {
		opts.Summarizer = summarize.NewClient(cfg.AnthropicAPIKey, nil)
	}
	if cfg.RaindropToken != "" {
		opts.Bookmarker = raindrop.NewClient(cfg.RaindropToken, nil)
	}

	program := tea.NewProgram(tui.NewModel(opts, articles), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
	}
}
