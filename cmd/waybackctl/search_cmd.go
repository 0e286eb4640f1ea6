package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/renameio/v2"

	wayback "github.com/edgi-govdata-archiving/wayback-sub000"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/waybacktime"
)

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	from := fs.String("from", "", "start timestamp (YYYYMMDD to YYYYMMDDhhmmss; missing digits are zero)")
	to := fs.String("to", "", "end timestamp (YYYYMMDD to YYYYMMDDhhmmss; missing digits are zero)")
	limit := fs.Int("limit", 0, "maximum records (0 = unlimited)")
	output := fs.String("output", "", "write a JSON array to this file instead of streaming JSON lines to stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("search: a URL argument is required")
	}
	targetURL := fs.Arg(0)

	opts := wayback.DefaultSearchOptions()
	opts.Limit = *limit
	if *from != "" {
		ts, err := waybacktime.Parse(*from)
		if err != nil {
			return fmt.Errorf("search: --from: %w", err)
		}
		opts.From = ts
	}
	if *to != "" {
		ts, err := waybacktime.Parse(*to)
		if err != nil {
			return fmt.Errorf("search: --to: %w", err)
		}
		opts.To = ts
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := wayback.NewClient(wayback.ClientConfig{Session: wayback.SessionConfig{Timeout: 30 * time.Second}})
	defer client.Close()

	iter := client.Search(ctx, targetURL, opts)

	if *output != "" {
		return writeSearchFile(iter, *output)
	}
	return streamSearchLines(iter)
}

func streamSearchLines(iter *wayback.SearchIter) error {
	enc := json.NewEncoder(os.Stdout)
	for {
		record, ok, err := iter.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
}

func writeSearchFile(iter *wayback.SearchIter, path string) error {
	records := make([]wayback.CaptureRecord, 0, 64)
	for {
		record, ok, err := iter.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		records = append(records, record)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}
