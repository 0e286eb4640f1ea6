package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	wayback "github.com/edgi-govdata-archiving/wayback-sub000"
	"github.com/edgi-govdata-archiving/wayback-sub000/internal/waybacktime"
)

func runGet(args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	timestamp := fs.String("timestamp", "", "capture timestamp (YYYYMMDDhhmmss)")
	mode := fs.String("mode", string(wayback.ModeOriginal), "playback mode: original, view, javascript, css, image")
	exact := fs.Bool("exact", true, "require an exact timestamp match")
	body := fs.Bool("body", false, "print the decoded response body")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("get: a URL argument is required")
	}
	targetURL := fs.Arg(0)
	if *timestamp == "" {
		return fmt.Errorf("get: --timestamp is required")
	}

	ts, err := waybacktime.Parse(*timestamp)
	if err != nil {
		return fmt.Errorf("get: --timestamp: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := wayback.NewClient(wayback.ClientConfig{Session: wayback.SessionConfig{Timeout: 30 * time.Second}})
	defer client.Close()

	memento, err := client.GetMementoURL(ctx, targetURL, ts,
		wayback.WithMode(wayback.Mode(*mode)),
		wayback.WithExact(*exact),
	)
	if err != nil {
		return err
	}
	defer memento.Close()

	fmt.Printf("status=%d url=%s memento=%s timestamp=%s\n",
		memento.StatusCode, memento.URL, memento.MementoURL, memento.Timestamp.Format(time.RFC3339))

	if *body {
		text, err := memento.Text()
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, text)
	}
	return nil
}
