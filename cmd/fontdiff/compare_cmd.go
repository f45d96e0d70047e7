package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/fontdiff/internal/acquire"
	"github.com/pscheid92/fontdiff/internal/adapter/memory"
	"github.com/pscheid92/fontdiff/internal/app"
	"github.com/pscheid92/fontdiff/internal/diff"
	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/pterm/pterm"
	"github.com/thatisuday/commando"
)

func runCompareCommand(args map[string]commando.ArgValue, flags map[string]commando.FlagValue) {
	beforeDir := strings.TrimSpace(args["before"].Value)
	afterDir := strings.TrimSpace(args["after"].Value)
	if beforeDir == "" || afterDir == "" {
		fatalf("both a before and an after directory are required")
	}

	views := splitViews(mustFlagString(flags["views"], "views"))
	limit := mustFlagInt(flags["limit"], "limit")
	workers := mustFlagInt(flags["workers"], "workers")
	asJSON := mustFlagBool(flags["json"], "json")
	if limit < 1 {
		fatalf("--limit must be at least 1")
	}

	before, err := loadDir(beforeDir)
	if err != nil {
		fatalf("%v", err)
	}
	after, err := loadDir(afterDir)
	if err != nil {
		fatalf("%v", err)
	}

	svc, err := newLocalService(views, limit, workers)
	if err != nil {
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := svc.Submit(ctx, domain.DirectCompare{Before: before, After: after})
	if err != nil {
		fatalf("compare failed: %v", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"fontset": res.FontSet, "diffs": res.Batch.Records}); err != nil {
			fatalf("failed to encode result: %v", err)
		}
		return
	}
	printReport(res, views)
}

// newLocalService wires the pipeline against the in-memory store. Only
// direct comparisons are possible, so no remote sources are configured.
func newLocalService(views []string, limit, workers int) (*app.Service, error) {
	engine := diff.NewSFNTEngine()
	for _, v := range views {
		if !domain.IsReservedView(v) && !slices.Contains(engine.Views(), v) {
			return nil, fmt.Errorf("unsupported view %q (supported: %s)", v, strings.Join(engine.Views(), ", "))
		}
	}
	if len(views) == 0 {
		return nil, fmt.Errorf("at least one view is required")
	}

	orchestrator := diff.NewOrchestrator(engine, views, limit, workers)
	resolver := acquire.NewResolver(nil, nil)
	return app.NewService(resolver, orchestrator, memory.NewSessionRepository(), views, clockwork.NewRealClock(), nil), nil
}

func splitViews(raw string) []string {
	var views []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" && !slices.Contains(views, v) {
			views = append(views, v)
		}
	}
	return views
}

// loadDir reads the .ttf and .otf files directly inside dir, in name order.
func loadDir(dir string) (domain.RawCollection, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", dir, err)
	}

	var files domain.RawCollection
	for _, entry := range entries {
		if entry.IsDir() || !isFontFile(entry.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", entry.Name(), err)
		}
		files = append(files, domain.RawFile{Name: entry.Name(), Data: data})
	}
	return files, nil
}

func isFontFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ttf", ".otf":
		return true
	}
	return false
}

func printReport(res *app.SubmitResult, views []string) {
	pterm.DefaultSection.Println("Pairs")
	_ = pterm.DefaultTable.WithHasHeader().WithData(pairRows(res.Pairs)).Render()

	pterm.DefaultSection.Println("Diff records")
	_ = pterm.DefaultTable.WithHasHeader().WithData(viewRows(res.Batch, views)).Render()

	for _, g := range res.FontSet.Gaps {
		pterm.Warning.Printf("%s %s dropped at %s: %s\n", g.Side, g.Name, g.Stage, g.Reason)
	}
	pterm.Success.Printf("session %s: %d before, %d after, %d records\n",
		res.SessionID, len(res.FontSet.Before), len(res.FontSet.After), len(res.Batch.Records))
}

func pairRows(pairs []domain.MatchedPair) [][]string {
	rows := [][]string{{"#", "before", "after"}}
	for i, p := range pairs {
		rows = append(rows, []string{strconv.Itoa(i + 1), fullNameOrDash(p.Before), fullNameOrDash(p.After)})
	}
	return rows
}

func fullNameOrDash(f *domain.Font) string {
	if f == nil {
		return "-"
	}
	return f.FullName
}

// viewRows counts records per status for every computed view.
func viewRows(batch domain.DiffBatch, views []string) [][]string {
	statuses := []domain.DiffStatus{
		domain.DiffStatusComputed,
		domain.DiffStatusMissingBefore,
		domain.DiffStatusMissingAfter,
		domain.DiffStatusFailed,
	}

	header := []string{"view"}
	for _, s := range statuses {
		header = append(header, string(s))
	}
	rows := [][]string{header}

	for _, v := range views {
		if domain.IsReservedView(v) {
			continue
		}
		counts := make(map[domain.DiffStatus]int)
		for _, r := range batch.ForView(v) {
			counts[r.Status]++
		}
		row := []string{v}
		for _, s := range statuses {
			row = append(row, strconv.Itoa(counts[s]))
		}
		rows = append(rows, row)
	}
	return rows
}
