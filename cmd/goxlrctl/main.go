// Command goxlrctl encodes one GoXLR command and optionally sends it to the daemon.
//
//	goxlrctl --serial S220202153DI7 SetVolume Mic 80
//	goxlrctl --serial S220202153DI7 --send SetButtonColours Bleep FF0000 00FF00
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"

	"goxlr-controller/internal/command"
	"goxlr-controller/internal/daemon"
)

const defaultURL = "ws://localhost:14564/api/websocket"

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	serial  string
	send    bool
	url     string
	timeout time.Duration
	policy  string
	list    bool
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := flag.NewFlagSet("goxlrctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	// stop at the command name so arguments are never read as flags
	fs.SetInterspersed(false)
	fs.StringVarP(&opts.serial, "serial", "s", "", "device serial")
	fs.BoolVar(&opts.send, "send", false, "send the command to the daemon")
	fs.StringVar(&opts.url, "url", envOr("GOXLR_DAEMON_URL", defaultURL), "daemon websocket URL")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Second, "daemon request timeout")
	fs.StringVar(&opts.policy, "case", "strict", "colour case policy: strict or upper")
	fs.BoolVar(&opts.list, "list", false, "print the command catalog and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: goxlrctl --serial SERIAL [--send] [--url URL] [--timeout D] [--case strict|upper] COMMAND ARGS...")
		fmt.Fprintln(stderr, "       goxlrctl --list")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if opts.list {
		printCatalog(stdout)
		return exitOK
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return exitUsage
	}

	policy, err := command.ParseCasePolicy(opts.policy)
	if err != nil {
		fmt.Fprintf(stderr, "goxlrctl: %v\n", err)
		return exitUsage
	}

	kind, err := command.KindFromArgs(rest[0], rest[1:], policy)
	if err != nil {
		fmt.Fprintf(stderr, "goxlrctl: %v\n", err)
		if entry, ok := command.Lookup(command.Name(rest[0])); ok {
			fmt.Fprintf(stderr, "usage: goxlrctl --serial SERIAL %s %s\n", entry.Name, entry.Usage())
		}
		return exitUsage
	}

	env, err := command.Encode(opts.serial, kind)
	if err != nil {
		fmt.Fprintf(stderr, "goxlrctl: %v\n", err)
		return exitUsage
	}
	fmt.Fprintln(stdout, env.String())

	if !opts.send {
		return exitOK
	}
	if err := send(opts, env); err != nil {
		fmt.Fprintf(stderr, "goxlrctl: %v\n", err)
		return exitFailed
	}
	fmt.Fprintln(stdout, "Ok")
	return exitOK
}

func send(opts options, env command.Envelope) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	client := daemon.NewClient(opts.url, daemon.Options{RequestTimeout: opts.timeout})
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return err
	}
	return client.Send(ctx, env)
}

func printCatalog(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COMMAND\tARGUMENTS\tSHAPE")
	for _, e := range command.Catalog() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Usage(), e.Shape)
	}
	tw.Flush()
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
