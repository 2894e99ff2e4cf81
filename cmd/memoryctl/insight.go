package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/untoldecay/semanticmemory/internal/storage"
	"github.com/untoldecay/semanticmemory/internal/types"
)

var insightCmd = &cobra.Command{
	Use:   "insight",
	Short: "store_insight/search_insights/update_insight/forget and the rest of the §6 insight operations",
}

func init() {
	rootCmd.AddCommand(insightCmd)
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// --- store ---

var (
	storeDomains string
	storeSource  string
	storeRepo    string
	storePR      string
	storePerson  string
	storeProject string
	storeTask    string
)

var insightStoreCmd = &cobra.Command{
	Use:   "store [text]",
	Short: "store_insight: decompose, classify, embed and persist text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		var git *types.GitContext
		if storeRepo != "" || storePR != "" || storePerson != "" || storeProject != "" || storeTask != "" {
			git = &types.GitContext{Repo: storeRepo, PR: storePR, Person: storePerson, Project: storeProject, Task: storeTask}
		}

		ids, err := svc.StoreInsight(cmd.Context(), args[0], storeSource, splitCSV(storeDomains), git)
		if err != nil {
			return fmt.Errorf("store insight failed: %w", err)
		}

		if outputFormat == "json" {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(ids)
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), passStyle.Render(id))
		}
		return nil
	},
}

// --- search ---

var (
	searchK      int
	searchDomain string
)

var insightSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "search_insights: embed the query and rank stored insights by cosine similarity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		results, err := svc.SearchInsights(cmd.Context(), args[0], searchK, searchDomain)
		if err != nil {
			return fmt.Errorf("search insights failed: %w", err)
		}
		return printSearchResults(cmd, results)
	},
}

func printSearchResults(cmd *cobra.Command, results []storage.SearchResult) error {
	if outputFormat == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(results)
	}
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{strconv.FormatFloat(r.Score, 'f', 3, 64), string(r.Insight.Frame), renderMarkdown(r.Insight.NormalizedText)}
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"SCORE", "FRAME", "NORMALIZED TEXT"}, rows))
	return nil
}

// --- list ---

var (
	listDomain string
	listFrame  string
	listLimit  int
)

var insightListCmd = &cobra.Command{
	Use:   "list",
	Short: "list_insights: list stored insights, optionally filtered by domain/frame",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		insights, err := svc.ListInsights(cmd.Context(), listDomain, listFrame, listLimit)
		if err != nil {
			return fmt.Errorf("list insights failed: %w", err)
		}
		if outputFormat == "json" {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(insights)
		}
		rows := make([][]string, len(insights))
		for i, ins := range insights {
			rows[i] = []string{ins.ID, string(ins.Frame), strconv.FormatFloat(ins.Confidence, 'f', 2, 64), renderMarkdown(ins.NormalizedText)}
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "FRAME", "CONFIDENCE", "NORMALIZED TEXT"}, rows))
		return nil
	},
}

// --- update ---

var (
	updateText       string
	updateConfidence float64
)

var insightUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "update_insight: apply a sparse field update",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		var fields storage.UpdateFields
		if cmd.Flags().Changed("text") {
			fields.Text = &updateText
		}
		if cmd.Flags().Changed("confidence") {
			fields.Confidence = &updateConfidence
		}

		ins, err := svc.UpdateInsight(cmd.Context(), args[0], fields)
		if err != nil {
			return fmt.Errorf("update insight failed: %w", err)
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(ins)
	},
}

// --- forget ---

var insightForgetCmd = &cobra.Command{
	Use:   "forget [id]",
	Short: "forget: delete a stored insight",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		ok, err := svc.Forget(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("forget failed: %w", err)
		}
		if !ok {
			return fmt.Errorf("no insight found with id %s", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), "forgotten")
		return nil
	},
}

// --- search-subject / related / relations ---

var (
	subjectKind  string
	subjectLimit int
)

var insightSearchSubjectCmd = &cobra.Command{
	Use:   "search-subject [name]",
	Short: "search_by_subject: list insights tagged with a subject node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		insights, err := svc.SearchBySubject(cmd.Context(), args[0], subjectKind, subjectLimit)
		if err != nil {
			return fmt.Errorf("search by subject failed: %w", err)
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(insights)
	},
}

var insightRelatedCmd = &cobra.Command{
	Use:   "related [id]",
	Short: "related_insights: list insights sharing a subject with id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		rel, err := svc.RelatedInsights(cmd.Context(), args[0], subjectLimit)
		if err != nil {
			return fmt.Errorf("related insights failed: %w", err)
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(rel)
	},
}

var insightAddRelationCmd = &cobra.Command{
	Use:   "add-relation [from-name] [from-kind] [to-name] [to-kind] [relation-type]",
	Short: "add_subject_relation: record a directed edge between two subject nodes",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		created, err := svc.AddSubjectRelation(cmd.Context(),
			args[0], types.SubjectKind(args[1]), args[2], types.SubjectKind(args[3]), types.RelationType(args[4]))
		if err != nil {
			return fmt.Errorf("add subject relation failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created=%v\n", created)
		return nil
	},
}

var insightGetRelationsCmd = &cobra.Command{
	Use:   "relations [name]",
	Short: "get_subject_relations: list a subject node's edges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		rel, err := svc.GetSubjectRelations(cmd.Context(), args[0], subjectKind, "", subjectLimit)
		if err != nil {
			return fmt.Errorf("get subject relations failed: %w", err)
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(rel)
	},
}

func init() {
	insightStoreCmd.Flags().StringVar(&storeDomains, "domains", "", "comma-separated domain tags")
	insightStoreCmd.Flags().StringVar(&storeSource, "source", "", "free-form source label")
	insightStoreCmd.Flags().StringVar(&storeRepo, "repo", "", "git repo context")
	insightStoreCmd.Flags().StringVar(&storePR, "pr", "", "git PR context")
	insightStoreCmd.Flags().StringVar(&storePerson, "person", "", "git author context")
	insightStoreCmd.Flags().StringVar(&storeProject, "project", "", "git project context")
	insightStoreCmd.Flags().StringVar(&storeTask, "task", "", "git task context")

	insightSearchCmd.Flags().IntVar(&searchK, "k", 10, "max results")
	insightSearchCmd.Flags().StringVar(&searchDomain, "domain", "", "restrict to a domain")

	insightListCmd.Flags().StringVar(&listDomain, "domain", "", "filter by domain")
	insightListCmd.Flags().StringVar(&listFrame, "frame", "", "filter by frame")
	insightListCmd.Flags().IntVar(&listLimit, "limit", 50, "max rows")

	insightUpdateCmd.Flags().StringVar(&updateText, "text", "", "replace the raw text")
	insightUpdateCmd.Flags().Float64Var(&updateConfidence, "confidence", 0, "replace the confidence score")

	insightSearchSubjectCmd.Flags().StringVar(&subjectKind, "kind", "", "subject kind filter")
	insightSearchSubjectCmd.Flags().IntVar(&subjectLimit, "limit", 50, "max rows")
	insightRelatedCmd.Flags().IntVar(&subjectLimit, "limit", 50, "max rows")
	insightGetRelationsCmd.Flags().StringVar(&subjectKind, "kind", "", "subject kind filter")
	insightGetRelationsCmd.Flags().IntVar(&subjectLimit, "limit", 50, "max rows")

	insightCmd.AddCommand(insightStoreCmd, insightSearchCmd, insightListCmd, insightUpdateCmd,
		insightForgetCmd, insightSearchSubjectCmd, insightRelatedCmd, insightAddRelationCmd, insightGetRelationsCmd)
}
