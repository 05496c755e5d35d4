package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-media-analyzer/internal/repository"
	"go-media-analyzer/pkg/models"
	"go-media-analyzer/pkg/validation"
)

var (
	settingsCmd = &cobra.Command{
		Use:   "settings",
		Short: "Show or reset persisted settings",
	}

	settingsShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE:  showSettings,
	}

	settingsResetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Remove persisted settings so defaults apply",
		RunE:  resetSettings,
	}
)

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsResetCmd)
}

func showSettings(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	s := repository.NewSettingsRepository(backend).Load(ctx)
	if outputFormat == "json" {
		return printJSON(cmd.OutOrStdout(), s)
	}
	printSettings(cmd, s)
	return nil
}

func printSettings(cmd *cobra.Command, s models.AppSettings) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "detection.confidenceThreshold  %g\n", s.Detection.ConfidenceThreshold)
	fmt.Fprintf(out, "detection.maxDetections        %d\n", s.Detection.MaxDetections)
	fmt.Fprintf(out, "detection.showLabels           %t\n", s.Detection.ShowLabels)
	fmt.Fprintf(out, "detection.showScores           %t\n", s.Detection.ShowScores)
	fmt.Fprintf(out, "ocr.language                   %s\n", s.OCR.Language)
	fmt.Fprintf(out, "ocr.minConfidence              %g\n", s.OCR.MinConfidence)
	fmt.Fprintf(out, "performance.videoFPS           %d\n", s.Performance.VideoFPS)
	fmt.Fprintf(out, "version                        %d\n", s.Version)
}

func resetSettings(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	repository.NewSettingsRepository(backend).ResetToDefaults(ctx)
	if outputFormat == "json" {
		return printJSON(cmd.OutOrStdout(), validation.DefaultSettings())
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Settings reset to defaults.")
	return nil
}
