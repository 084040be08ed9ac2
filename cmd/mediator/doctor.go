package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/subluminal/hookmediator/internal/config"
	"github.com/subluminal/hookmediator/internal/store"
)

func runDoctor(args []string) int {
	flags := flag.NewFlagSet("doctor", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "Unexpected args: %s\n", strings.Join(flags.Args(), " "))
		flags.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stdout, "config: error: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stdout, "config: mode=%s enabled=%t dry_run=%t mock_mode=%t fail_open=%t\n",
		cfg.Mode, cfg.Enabled, cfg.DryRun, cfg.MockMode, cfg.FailOpen)

	ok := true

	dbPath := filepath.Join(cfg.StateDir, "state.db")
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stdout, "state store: %s (error: %v)\n", dbPath, err)
		ok = false
	} else {
		fmt.Fprintf(os.Stdout, "state store: %s\n", dbPath)
		st.Close()
	}

	if info, err := os.Stat(cfg.LogPath); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(os.Stdout, "audit log: %s (not yet created)\n", cfg.LogPath)
		} else {
			fmt.Fprintf(os.Stdout, "audit log: %s (error: %v)\n", cfg.LogPath, err)
			ok = false
		}
	} else if info.IsDir() {
		fmt.Fprintf(os.Stdout, "audit log: %s (is a directory)\n", cfg.LogPath)
		ok = false
	} else {
		fmt.Fprintf(os.Stdout, "audit log: %s\n", cfg.LogPath)
	}

	if cfg.MockMode || cfg.DryRun {
		fmt.Fprintln(os.Stdout, "policy api: skipped (mock_mode or dry_run enabled)")
	} else if cfg.APIURL == "" {
		fmt.Fprintln(os.Stdout, "policy api: API_URL not set")
		ok = false
	} else if reachable, err := probePolicyAPI(cfg.APIURL, time.Duration(cfg.RequestTimeoutSeconds)*time.Second); !reachable {
		fmt.Fprintf(os.Stdout, "policy api: %s (unreachable: %v)\n", cfg.APIURL, err)
		ok = false
	} else {
		fmt.Fprintf(os.Stdout, "policy api: %s\n", cfg.APIURL)
	}

	if ok {
		fmt.Fprintln(os.Stdout, "doctor: ok")
		return 0
	}
	fmt.Fprintln(os.Stdout, "doctor: issues found")
	return 1
}

// probePolicyAPI issues a lightweight HEAD request; any response (even a
// 4xx/5xx) counts as "reachable" since this only checks connectivity, not
// authorization.
func probePolicyAPI(url string, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return true, nil
}
