package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"ironbank/internal/adapter/cli/uxerror"
)

const version = "0.4.0"

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run dispatches a command line and returns the process exit code.
func run(ctx context.Context, argv []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfgPath, args := splitConfigFlag(argv)

	cmd := ""
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "help", "--help", "-h":
		showUsage(stdout)
		return 0
	case "version":
		fmt.Fprintf(stdout, "ironbank %s\n", version)
		return 0
	case "doctor":
		if err := runDoctor(ctx, cfgPath, stdout); err != nil {
			fmt.Fprintf(stderr, "doctor: %v\n", err)
			return 1
		}
		return 0
	case "encrypt-secret":
		if err := runEncryptSecret(args, stdin, stdout); err != nil {
			fmt.Fprintf(stderr, "encrypt-secret: %v\n", err)
			return 1
		}
		return 0
	}
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
		showUsage(stdout)
		return 0
	}

	handler, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(stderr, "unknown command: %s\n\nRun 'ironbank --help' for usage information.\n", cmd)
		return 2
	}

	a, err := newApp(ctx, cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, uxerror.Humanize(err).Render())
		return 1
	}
	defer a.Close()

	if err := handler(ctx, a, args, stdin, stdout); err != nil {
		fmt.Fprintln(stderr, uxerror.Humanize(err).Render())
		return 1
	}
	return 0
}

// splitConfigFlag removes --config PATH / --config=PATH from argv.
// IRONBANK_CONFIG is used when the flag is absent.
func splitConfigFlag(argv []string) (string, []string) {
	path := ""
	rest := make([]string, 0, len(argv))
	for i := 0; i < len(argv); i++ {
		switch {
		case argv[i] == "--config" && i+1 < len(argv):
			path = argv[i+1]
			i++
		case strings.HasPrefix(argv[i], "--config="):
			path = strings.TrimPrefix(argv[i], "--config=")
		default:
			rest = append(rest, argv[i])
		}
	}
	if path == "" {
		path = os.Getenv("IRONBANK_CONFIG")
	}
	if path == "" {
		path = "ironbank.yaml"
	}
	return path, rest
}

func showUsage(w io.Writer) {
	fmt.Fprintln(w, `ironbank - ledger directory service

USAGE:
    ironbank [COMMAND] [ARGS] [--config PATH]

COMMANDS:
    serve                   Run the gateway for the desktop front-end
    list [--paths]          List ledgers, newest first
    read <path>             Print a ledger's contents
    save <filename> [file]  Write a ledger from file (or stdin when omitted or "-")
    delete <path>           Delete a ledger
    reset-tutorial          Overwrite the tutorial ledger with the bundled template
    tutorial                Print the bundled tutorial template
    dir                     Print the ledgers directory
    open                    Open the ledgers directory in the file manager
    browse                  Browse ledgers interactively (terminal UI)
    audit [--type T] [--limit N] [--since D] [--json]
                            Show recent audit journal entries
    doctor                  Run health checks on your setup
    encrypt-secret          Encrypt a gateway token (reads stdin) with IRONBANK_CONFIG_KEY
    version                 Print the version

    (no command) - serve when gateway.enabled is set, otherwise show this help

CONFIGURATION:
    Config file: ./ironbank.yaml (or IRONBANK_CONFIG)
    Environment: IRONBANK_* variables override config

EXAMPLES:
    ironbank list
    ironbank save household.json ./household.json
    ironbank read ~/Documents/Ironbank/ledgers/household.json
    ironbank serve --config /etc/ironbank.yaml`)
}
