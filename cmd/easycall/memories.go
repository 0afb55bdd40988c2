package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nugget/easycall/internal/conversation"
	"github.com/nugget/easycall/internal/memory"
)

func runMemories(ctx context.Context, a *app, out output, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: easycall memories <export [path] | import <path>>")
	}
	switch args[0] {
	case "export":
		path := ""
		if len(args) > 1 {
			path = args[1]
		}
		return exportMemories(ctx, a, out, path)
	case "import":
		if len(args) < 2 {
			return fmt.Errorf("usage: easycall memories import <path>")
		}
		return importMemories(ctx, a, out, args[1])
	default:
		return fmt.Errorf("unknown memories command: %s", args[0])
	}
}

func exportMemories(ctx context.Context, a *app, out output, path string) error {
	var payload memory.ExportPayload
	err := a.store.View(ctx, func(st *conversation.State) error {
		payload = memory.Export(st.Memories, time.Now())
		return nil
	})
	if err != nil {
		return err
	}

	if path == "" {
		return out.encode(payload)
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memories: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write memories: %w", err)
	}
	if out.json() {
		return out.encode(map[string]any{"path": path, "count": len(payload.Memories)})
	}
	fmt.Fprintf(out.w, "Exported %d memories to %s\n", len(payload.Memories), path)
	return nil
}

func importMemories(ctx context.Context, a *app, out output, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read memories: %w", err)
	}
	var payload memory.ExportPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse memories %s: %w", path, err)
	}

	var res memory.ImportResult
	err = a.store.Update(ctx, func(st *conversation.State) error {
		st.Memories, res = memory.Import(st.Memories, payload.Drafts(), time.Now())
		return nil
	})
	if err != nil {
		return err
	}
	a.cache.Invalidate()
	a.logger.Info("memories imported",
		"imported", res.Imported,
		"created", res.Created,
		"merged", res.Merged,
		"total", res.Total,
	)

	if out.json() {
		return out.encode(res)
	}
	fmt.Fprintf(out.w, "Imported %d memories (%d created, %d merged), %d total\n",
		res.Imported, res.Created, res.Merged, res.Total)
	return nil
}
