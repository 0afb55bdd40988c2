package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/nugget/easycall/internal/agent"
)

// chatArgs splits chat arguments into message text and attachments.
func chatArgs(args []string) (agent.SendInput, error) {
	var in agent.SendInput
	var words []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-image", "-audio":
			if i+1 >= len(args) {
				return in, fmt.Errorf("%s needs a file path", args[i])
			}
			att, err := readAttachment(args[i+1])
			if err != nil {
				return in, err
			}
			if args[i] == "-image" {
				in.Images = append(in.Images, att)
			} else {
				in.Audios = append(in.Audios, att)
			}
			i++
		default:
			words = append(words, args[i])
		}
	}
	in.Text = strings.Join(words, " ")
	return in, nil
}

func readAttachment(path string) (agent.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return agent.Attachment{}, fmt.Errorf("read attachment: %w", err)
	}
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt == "" {
		mt = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return agent.Attachment{Mime: mt, Base64: base64.StdEncoding.EncodeToString(data)}, nil
}

// streamSink prints reply text as it arrives and tool progress on
// stderr. JSON output suppresses streaming in favor of the final result.
func streamSink(out output, stderr io.Writer) agent.Sink {
	return func(ev agent.Event) {
		switch ev.Kind {
		case agent.EventText:
			if !out.json() {
				fmt.Fprint(out.w, ev.Delta)
			}
		case agent.EventToolStatus:
			fmt.Fprintf(stderr, "[%s] %s: %s\n", ev.ToolStatus, ev.ToolName, ev.Message)
		}
	}
}

func runChat(ctx context.Context, a *app, stdin io.Reader, out output, stderr io.Writer, args []string) error {
	in, err := chatArgs(args)
	if err != nil {
		return err
	}
	svc, err := a.service()
	if err != nil {
		return err
	}

	if strings.TrimSpace(in.Text) != "" || len(in.Images) > 0 || len(in.Audios) > 0 {
		return send(ctx, svc, in, out, stderr)
	}
	return interactive(ctx, a, svc, stdin, out, stderr)
}

func send(ctx context.Context, svc *agent.Service, in agent.SendInput, out output, stderr io.Writer) error {
	res, err := svc.Send(ctx, in, streamSink(out, stderr))
	if err != nil {
		return err
	}
	if out.json() {
		return out.encode(res)
	}
	fmt.Fprintln(out.w)
	return nil
}

// interactive reads one message per line until EOF or /quit. Errors
// from a single message are reported and the session continues. The
// metrics endpoint, when enabled, is served for the life of the session.
func interactive(ctx context.Context, a *app, svc *agent.Service, stdin io.Reader, out output, stderr io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.metrics.Enabled() {
		go func() {
			a.logger.Info("serving metrics", "listen", a.cfg.Metrics.Listen)
			if err := a.metrics.Serve(ctx, a.cfg.Metrics.Listen); err != nil {
				a.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	fmt.Fprintln(stderr, "Type a message and press enter. /archive archives the conversation, /quit exits.")
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(stderr, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/archive":
			if err := archiveWith(ctx, svc, out); err != nil {
				fmt.Fprintf(stderr, "%s\n", err)
			}
			continue
		}
		if err := send(ctx, svc, agent.SendInput{Text: line}, out, stderr); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}
	return scanner.Err()
}
