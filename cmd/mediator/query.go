package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/subluminal/hookmediator/internal/config"
	"github.com/subluminal/hookmediator/internal/store"
)

const queryRowPreviewChars = 80

func runQuery(args []string) int {
	flags := flag.NewFlagSet("query", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	dbPathFlag := flags.String("db", "", "Path to the state store (default: $STATE_DIR/state.db)")
	sessionFlag := flags.String("session", "", "Session ID to list open events for (required)")

	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "Unexpected args: %s\n", strings.Join(flags.Args(), " "))
		flags.Usage()
		return 2
	}
	if strings.TrimSpace(*sessionFlag) == "" {
		fmt.Fprintln(os.Stderr, "Error: --session is required")
		flags.Usage()
		return 2
	}

	dbPath, err := resolveStorePath(*dbPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening state store: %v\n", err)
		return 1
	}
	defer st.Close()

	open, err := st.OpenEventsForSession(*sessionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing open events: %v\n", err)
		return 1
	}

	if len(open) == 0 {
		fmt.Fprintln(os.Stdout, "no open events for session")
		return 0
	}

	fmt.Fprintln(os.Stdout, "LINK_KEY\tEVENT_ID\tCLASS\tHOOK\tCREATED_AT\tINPUT")
	for _, linked := range open {
		fmt.Fprintf(os.Stdout, "%s\t%s\t%s\t%s\t%s\t%s\n",
			linked.LinkKey,
			linked.Event.EventID,
			linked.Event.EventClass,
			linked.Event.HookName,
			linked.Event.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			preview(linked.Event.InputContent, queryRowPreviewChars),
		)
	}
	return 0
}

func resolveStorePath(flagValue string) (string, error) {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.StateDir, "state.db"), nil
}

func preview(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
