package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sprintdesk/internal/cli"
)

// isTaskRef accepts "#42" and "42".
func isTaskRef(s string) bool {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func rewriteDirectTaskLookupArgs(argv []string) []string {
	// `sprintdesk 42` works like `sprintdesk tasks show 42`. Cobra treats the first non-flag
	// token as a subcommand, so argv is rewritten before parsing. Persistent flags often come
	// first, so this looks for the first positional token rather than argv[1].
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--config":    true,
		"--api-url":   true,
		"--state":     true,
		"--token":     true,
		"--log-level": true,
		"--format":    true,
	}

	// rewrite replaces argv[from:to+1] with the show command for argv[to].
	rewrite := func(from, to int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:from]...)
		out = append(out, "tasks", "show", strings.TrimPrefix(strings.TrimSpace(argv[to]), "#"))
		return append(out, argv[to+1:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isTaskRef(argv[i+1]) {
				return rewrite(i, i+1)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}
		if isTaskRef(a) {
			return rewrite(i, i)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteDirectTaskLookupArgs(os.Args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCmd()
	cmd.SetArgs(os.Args[1:])
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
