package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	wayback "github.com/edgi-govdata-archiving/wayback-sub000"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/wblog"
)

// bulkTarget is one line of the input file: a URL and the timestamp to
// fetch it at.
type bulkTarget struct {
	url       string
	timestamp time.Time
}

func runBulk(args []string) error {
	fs := flag.NewFlagSet("bulk", flag.ExitOnError)
	concurrency := fs.Int("concurrency", 4, "number of concurrent workers")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("bulk: a file-of-urls argument is required")
	}

	targets, err := readBulkTargets(fs.Arg(0))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// All workers share one Session (and therefore one rate-limit gate
	// and connection pool); each worker wraps it in its own Client so
	// Close semantics stay per-goroutine-free.
	session := wayback.NewSession(wayback.SessionConfig{Timeout: 30 * time.Second})
	defer session.Close()

	logger := wblog.WithComponent("bulk")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)

	for _, t := range targets {
		t := t
		g.Go(func() error {
			client := wayback.NewClientWithSession(session)
			memento, err := client.GetMementoURL(gctx, t.url, t.timestamp)
			if err != nil {
				logger.Warn().Err(err).Str("url", t.url).Msg("memento fetch failed")
				return nil
			}
			defer memento.Close()
			logger.Info().Str("url", t.url).Int("status", memento.StatusCode).Msg("memento fetched")
			return nil
		})
	}

	return g.Wait()
}

func readBulkTargets(path string) ([]bulkTarget, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var targets []bulkTarget
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("bulk: malformed line %q: expected \"<url> <timestamp>\"", line)
		}
		ts, err := time.Parse("20060102150405", fields[1])
		if err != nil {
			return nil, fmt.Errorf("bulk: malformed timestamp in line %q: %w", line, err)
		}
		targets = append(targets, bulkTarget{url: fields[0], timestamp: ts})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}
