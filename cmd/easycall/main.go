// EasyCall is a desktop chat assistant for OpenAI-compatible, Gemini,
// DeepSeek/Kimi, and Anthropic models, with long-term memories and
// automatic archiving of long or idle conversations.
//
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	easycall init [dir]                            Write an example config.yaml
//	easycall chat <text...>                        Send one message and stream the reply
//	easycall chat                                  Chat interactively, one message per line
//	easycall archive                               Archive the active conversation now
//	easycall archives                              List archived conversations
//	easycall export-archive <id> <format> [path]   Export an archive as json, markdown, or html
//	easycall delete-archive <id>                   Delete an archived conversation
//	easycall memories export [path]                Write all memories as JSON
//	easycall memories import <path>                Merge memories from a JSON export
//	easycall version                               Print version and build information
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nugget/easycall/internal/buildinfo"
	"github.com/nugget/easycall/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		stop()
		os.Exit(1)
	}
}

// run is the real entry point. OS-level dependencies are injected so
// tests can drive whole commands. Streamed replies go to stdout; logs
// and tool status lines go to stderr.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case command != "":
			cmdArgs = append(cmdArgs, args[i])
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-"):
			command = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}
	out := output{w: stdout, format: outputFmt}

	switch command {
	case "version":
		return runVersion(out)
	case "", "help":
		return printUsage(stdout)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	}

	a, err := openApp(configPath, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	switch command {
	case "chat":
		return runChat(ctx, a, stdin, out, stderr, cmdArgs)
	case "archive":
		return runArchive(ctx, a, out)
	case "archives":
		return runArchives(ctx, a, out)
	case "export-archive":
		if len(cmdArgs) < 2 {
			return fmt.Errorf("usage: easycall export-archive <id> <json|markdown|html> [path]")
		}
		return runExportArchive(ctx, a, stdout, cmdArgs)
	case "delete-archive":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("usage: easycall delete-archive <id>")
		}
		return runDeleteArchive(ctx, a, out, cmdArgs[0])
	case "memories":
		return runMemories(ctx, a, out, cmdArgs)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// output writes command results as text or indented JSON.
type output struct {
	w      io.Writer
	format string
}

func (o output) json() bool { return o.format == "json" }

func (o output) encode(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func runVersion(out output) error {
	info := buildinfo.BuildInfo()
	if out.json() {
		return out.encode(info)
	}
	fmt.Fprintln(out.w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(out.w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "EasyCall - desktop chat assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: easycall [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  init [dir]                           Create a workspace with an example config")
	fmt.Fprintln(w, "  chat [text...]                       Send a message, or chat interactively without text")
	fmt.Fprintln(w, "         -image <path>, -audio <path>  Attach a file to the message")
	fmt.Fprintln(w, "  archive                              Summarize and archive the active conversation")
	fmt.Fprintln(w, "  archives                             List archived conversations")
	fmt.Fprintln(w, "  export-archive <id> <format> [path]  Export an archive (json, markdown, html)")
	fmt.Fprintln(w, "  delete-archive <id>                  Delete an archived conversation")
	fmt.Fprintln(w, "  memories export [path]               Export memories as JSON")
	fmt.Fprintln(w, "  memories import <path>               Import memories from a JSON export")
	fmt.Fprintln(w, "  version                              Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintf(w, "  %s\n", strings.Join(config.DefaultSearchPaths(), ", "))
	return nil
}
