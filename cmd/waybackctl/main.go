package main

import (
	"fmt"
	"os"

	"github.com/edgi-govdata-archiving/wayback-sub000/internal/wblog"
)

var (
	version = "v0.1.0"
	commit  = "none"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	wblog.Configure(wblog.Config{Level: "info", Service: "waybackctl"})

	var err error
	switch os.Args[1] {
	case "search":
		err = runSearch(os.Args[2:])
	case "get":
		err = runGet(os.Args[2:])
	case "bulk":
		err = runBulk(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "version":
		fmt.Printf("waybackctl %s (commit %s)\n", version, commit)
		return
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "waybackctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: waybackctl <command> [flags]

commands:
  search <url>  [--from] [--to] [--limit] [--output file]
  get <url>     [--timestamp] [--mode] [--exact=false]
  bulk <file>   [--concurrency N]
  serve         [--addr :8080] [--config path]
  version`)
}
