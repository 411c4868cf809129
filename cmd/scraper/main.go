package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"feedsync/internal/app"
	"feedsync/internal/config"
	"feedsync/internal/database/seeder"
	"feedsync/internal/domain/listing"
	"feedsync/internal/pkg/jwt"
	"feedsync/internal/scraper"
	"feedsync/internal/usecase"
)

func main() {
	kindFlag := flag.String("kind", "job", "listing kind to scrape: job or event")
	adapter := flag.String("adapter", "", "run a single adapter by name (substring match allowed)")
	persist := flag.Bool("persist", false, "write admitted records to the database")
	list := flag.Bool("list", false, "list registered adapters and exit")
	token := flag.String("admin-token", "", "print an admin bearer token for this subject and exit")
	seed := flag.Bool("seed", false, "upsert the sample development listings and exit")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	if *token != "" {
		svc := jwt.NewHMACService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL)
		tok, err := svc.GenerateToken(*token, jwt.RoleAdmin)
		if err != nil {
			logger.Fatalf("generate token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	if *list {
		sources, err := config.LoadSources(cfg.Scraper.SourcesFile)
		if err != nil {
			logger.Fatalf("load sources: %v", err)
		}
		reg, err := scraper.NewDefaultRegistry(cfg.Scraper, sources, logger)
		if err != nil {
			logger.Fatalf("build registry: %v", err)
		}
		printSources(reg.Sources())
		return
	}

	kind, err := listing.ParseKind(*kindFlag)
	if err != nil {
		logger.Fatalf("invalid -kind: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, initCancel := context.WithTimeout(ctx, 2*time.Minute)
	c, err := app.NewContainer(initCtx, cfg, logger)
	initCancel()
	if err != nil {
		logger.Fatalf("failed to init container: %v", err)
	}
	defer func() {
		_ = c.Close()
	}()

	if *seed {
		r := seeder.Runner{Seeders: seeder.Defaults(time.Now()), Logger: logger}
		if err := r.Run(ctx, c.Store); err != nil {
			logger.Fatalf("seed failed: %v", err)
		}
		return
	}

	summary, err := c.Scrape.Scrape(ctx, usecase.ScrapeParams{Kind: kind, Adapter: *adapter, Persist: *persist})
	printReports(summary)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Printf("interrupted")
			os.Exit(130)
		}
		logger.Fatalf("scrape failed: %v", err)
	}
	fmt.Println(summary.Message)
}

func printSources(sources []scraper.SourceInfo) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tMAX\tBASE URL")
	for _, s := range sources {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Name, s.Kind, s.MaxItems, s.BaseURL)
	}
	_ = w.Flush()
}

func printReports(s usecase.ScrapeSummary) {
	if len(s.Reports) == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ADAPTER\tSTATUS\tFOUND\tADMITTED\tREJECTED\tDURATION\tERROR")
	for _, r := range s.Reports {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%dms\t%s\n", r.Name, r.Status, r.Found, r.Admitted, r.Rejected, r.DurationMS, r.Error)
	}
	_ = w.Flush()
}
