package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/untoldecay/semanticmemory/internal/ingest"
	"github.com/untoldecay/semanticmemory/internal/types"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "add_knowledge_base/search_knowledge_base/list_knowledge_bases and file ingestion",
}

func init() {
	rootCmd.AddCommand(kbCmd)
}

// --- add / list ---

var kbAddDescription string

var kbAddCmd = &cobra.Command{
	Use:   "add [name] [source-type]",
	Short: "add_knowledge_base: register a new named chunk collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !types.IsValidSourceType(args[1]) {
			return fmt.Errorf("invalid source type %q (want one of crawl, scrape, file, text)", args[1])
		}
		store, svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := svc.AddKnowledgeBase(cmd.Context(), &types.KnowledgeBase{
			Name: args[0], SourceType: args[1], Description: kbAddDescription,
		})
		if err != nil {
			return fmt.Errorf("add knowledge base failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "list_knowledge_bases",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		kbs, err := svc.ListKnowledgeBases(cmd.Context())
		if err != nil {
			return fmt.Errorf("list knowledge bases failed: %w", err)
		}
		if outputFormat == "json" {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(kbs)
		}
		rows := make([][]string, len(kbs))
		for i, kb := range kbs {
			rows[i] = []string{kb.ID, kb.Name, kb.SourceType, kb.Description}
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "NAME", "SOURCE TYPE", "DESCRIPTION"}, rows))
		return nil
	},
}

// --- search ---

var kbSearchK int

var kbSearchCmd = &cobra.Command{
	Use:   "search [kb-id] [query]",
	Short: "search_knowledge_base: embed the query and rank a single KB's chunks",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		results, err := svc.SearchKnowledgeBase(cmd.Context(), args[0], args[1], kbSearchK)
		if err != nil {
			return fmt.Errorf("search knowledge base failed: %w", err)
		}
		if outputFormat == "json" {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(results)
		}
		rows := make([][]string, len(results))
		for i, r := range results {
			rows[i] = []string{strconv.FormatFloat(r.Score, 'f', 3, 64), string(r.Chunk.Frame), r.Chunk.SourceURL, renderMarkdown(r.Chunk.NormalizedText)}
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"SCORE", "FRAME", "SOURCE URL", "TEXT"}, rows))
		return nil
	},
}

// --- ingest-file ---

var kbIngestWatch bool

var kbIngestFileCmd = &cobra.Command{
	Use:   "ingest-file [kb-id] [path...]",
	Short: "Ingest one or more local markdown files into a knowledge base (source_type=file)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kbID := args[0]
		paths := args[1:]

		store, ig, err := newIngestor(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		ingestOnce := func(paths []string) error {
			pages, err := readMarkdownFiles(paths)
			if err != nil {
				return err
			}
			n, err := ig.IngestPages(cmd.Context(), kbID, pages, func(current, total int, url string) {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", current, total, url)
			})
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d chunk(s)\n", n)
			return nil
		}

		if err := ingestOnce(paths); err != nil {
			return err
		}
		if !kbIngestWatch {
			return nil
		}

		// --watch re-ingests a file whenever it changes: new watcher, add each path,
		// loop on events/errors.
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
		defer watcher.Close()
		for _, p := range paths {
			if err := watcher.Add(p); err != nil {
				return fmt.Errorf("failed to watch %s: %w", p, err)
			}
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "watching for changes, ctrl-c to stop")
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := ingestOnce([]string{event.Name}); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "re-ingest of %s failed: %v\n", event.Name, err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "watcher error: %v\n", err)
			case <-cmd.Context().Done():
				return nil
			}
		}
	},
}

func readMarkdownFiles(paths []string) ([]ingest.Page, error) {
	pages := make([]ingest.Page, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		url := p
		if abs, err := filepath.Abs(p); err == nil {
			url = "file://" + abs
		}
		pages = append(pages, ingest.Page{URL: url, Markdown: string(data)})
	}
	return pages, nil
}

func init() {
	kbAddCmd.Flags().StringVar(&kbAddDescription, "description", "", "free-form description")
	kbSearchCmd.Flags().IntVar(&kbSearchK, "k", 10, "max results")
	kbIngestFileCmd.Flags().BoolVar(&kbIngestWatch, "watch", false, "keep running and re-ingest on file change")

	kbCmd.AddCommand(kbAddCmd, kbListCmd, kbSearchCmd, kbIngestFileCmd)
}
