package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/subluminal/hookmediator/internal/config"
)

func runTail(args []string) int {
	flags := flag.NewFlagSet("tail", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	pathFlag := flags.String("log", "", "Path to the audit log (default: $LOG_PATH)")
	pollFlag := flags.Duration("poll", time.Second, "Polling interval")
	fromStart := flags.Bool("from-start", false, "Replay the whole log instead of only new records")

	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "Unexpected args: %s\n", strings.Join(flags.Args(), " "))
		flags.Usage()
		return 2
	}
	if *pollFlag <= 0 {
		fmt.Fprintln(os.Stderr, "Error: --poll must be > 0")
		return 2
	}

	logPath := *pathFlag
	if strings.TrimSpace(logPath) == "" {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		logPath = cfg.LogPath
	}

	f, err := os.Open(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audit log: %v\n", err)
		return 1
	}
	defer f.Close()

	if !*fromStart {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			fmt.Fprintf(os.Stderr, "Error seeking audit log: %v\n", err)
			return 1
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	reader := bufio.NewReader(f)
	ticker := time.NewTicker(*pollFlag)
	defer ticker.Stop()

	for {
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				fmt.Fprint(os.Stdout, line)
			}
			if err != nil {
				break
			}
		}

		select {
		case <-sigCh:
			return 0
		case <-ticker.C:
		}
	}
}
