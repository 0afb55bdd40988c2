package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/nugget/easycall/internal/agent"
	"github.com/nugget/easycall/internal/archive"
	"github.com/nugget/easycall/internal/conversation"
)

func runArchive(ctx context.Context, a *app, out output) error {
	svc, err := a.service()
	if err != nil {
		return err
	}
	return archiveWith(ctx, svc, out)
}

func archiveWith(ctx context.Context, svc *agent.Service, out output) error {
	res, err := svc.ForceArchive(ctx)
	if err != nil {
		return err
	}
	if out.json() {
		return out.encode(res)
	}
	fmt.Fprintf(out.w, "Archived as %s (%d memories merged)\n%s\n", res.ArchiveID, res.MergedMemories, res.Summary)
	return nil
}

func runArchives(ctx context.Context, a *app, out output) error {
	var list []archive.Summary
	err := a.store.View(ctx, func(st *conversation.State) error {
		list = archive.List(st)
		return nil
	})
	if err != nil {
		return err
	}
	if out.json() {
		return out.encode(list)
	}
	if len(list) == 0 {
		fmt.Fprintln(out.w, "No archived conversations.")
		return nil
	}
	tw := tabwriter.NewWriter(out.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tARCHIVED\tREASON\tMESSAGES\tTITLE")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			s.ArchiveID, s.ArchivedAt.Local().Format(time.DateTime), s.Reason, s.MessageCount, s.Title)
	}
	return tw.Flush()
}

// runExportArchive writes an archive to the path in args[2], or to w.
func runExportArchive(ctx context.Context, a *app, w io.Writer, args []string) error {
	id := args[0]
	format, err := archive.ParseFormat(args[1])
	if err != nil {
		return err
	}

	var data []byte
	err = a.store.View(ctx, func(st *conversation.State) error {
		found, err := archive.Find(st, id)
		if err != nil {
			return err
		}
		data, err = archive.Export(found, format, time.Now())
		return err
	})
	if err != nil {
		return err
	}

	if len(args) < 3 {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(args[2], data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	a.logger.Info("archive exported", "archive", id, "format", format, "path", args[2])
	return nil
}

func runDeleteArchive(ctx context.Context, a *app, out output, id string) error {
	err := a.store.Update(ctx, func(st *conversation.State) error {
		return archive.Delete(st, id)
	})
	if err != nil {
		return err
	}
	if out.json() {
		return out.encode(map[string]string{"deleted": id})
	}
	fmt.Fprintf(out.w, "Deleted archive %s\n", id)
	return nil
}
