package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go-media-analyzer/pkg/models"
)

var historyType string

var (
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Inspect or clear saved analyses",
	}

	historyListCmd = &cobra.Command{
		Use:   "list",
		Short: "List saved analyses, newest first",
		RunE:  listHistory,
	}

	historyClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved analysis",
		RunE:  clearHistory,
	}
)

func init() {
	historyListCmd.Flags().StringVar(&historyType, "type", "", "Only show one analysis type (detection, classification, ocr)")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyClearCmd)
}

func listHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	entries := historyRepository(cfg, backend).GetEntries(ctx)
	if historyType != "" {
		mode, err := models.ParseMode(historyType)
		if err != nil {
			return err
		}
		entries = filterEntries(entries, mode)
	}

	if outputFormat == "json" {
		return printJSON(cmd.OutOrStdout(), models.HistoryResponse{Entries: entries, Count: len(entries)})
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No history entries.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIMESTAMP\tTYPE\tSIZE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\n", e.ID, e.Timestamp, e.AnalysisType,
			e.ImageDimensions.Width, e.ImageDimensions.Height)
	}
	return w.Flush()
}

func filterEntries(entries []models.HistoryEntry, mode models.AnalysisMode) []models.HistoryEntry {
	out := make([]models.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.AnalysisType == mode {
			out = append(out, e)
		}
	}
	return out
}

func clearHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	historyRepository(cfg, backend).ClearHistory(ctx)
	fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
	return nil
}
