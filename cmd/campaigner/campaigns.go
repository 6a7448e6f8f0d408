package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/campaigner/internal/export"
	"github.com/mohammad-safakhou/campaigner/internal/orchestrator"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func generateCMD(cfgPath *string) *cobra.Command {
	var brief string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a campaign from a brief and print its manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.close()
			doc, err := a.orch.GenerateCampaign(cmd.Context(), brief)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().StringVar(&brief, "brief", "", "campaign brief")
	_ = cmd.MarkFlagRequired("brief")
	return cmd
}

func regenerateCMD(cfgPath *string) *cobra.Command {
	var campaignID, assetID, instructions string
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate one asset of a stored campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.close()
			doc, err := a.orch.RegenerateAsset(cmd.Context(), campaignID, assetID, instructions)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), doc)
		},
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "campaign id (looked up from the asset when empty)")
	cmd.Flags().StringVar(&assetID, "asset", "", "asset id")
	cmd.Flags().StringVar(&instructions, "instructions", "", "modification instructions")
	_ = cmd.MarkFlagRequired("asset")
	return cmd
}

func mediaPlanCMD(cfgPath *string) *cobra.Command {
	var (
		campaignID string
		opts       orchestrator.Options
	)
	cmd := &cobra.Command{
		Use:   "media-plan",
		Short: "Build and attach a media plan for a stored campaign",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.close()
			plan, err := a.orch.GenerateMediaPlan(cmd.Context(), campaignID, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), plan)
		},
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "campaign id")
	cmd.Flags().IntVar(&opts.DurationDays, "duration", 0, "plan length in days (default media_plan.duration_days)")
	cmd.Flags().StringVar(&opts.Budget, "budget", "", "low, medium or high (default media_plan.budget)")
	cmd.Flags().StringVar(&opts.Location, "location", "", "target market (default media_plan.location)")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

func exportCMD(cfgPath *string) *cobra.Command {
	var campaignID, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a campaign archive (manifest and assets) to a ZIP file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := base(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.close()
			doc, err := a.store.Load(cmd.Context(), campaignID)
			if err != nil {
				return err
			}
			if out == "" {
				out = export.FileName(campaignID)
			}
			tmp, err := os.CreateTemp(filepath.Dir(out), ".export-*.zip")
			if err != nil {
				return err
			}
			defer os.Remove(tmp.Name())
			if err := export.Write(cmd.Context(), tmp, doc, a.blobs); err != nil {
				_ = tmp.Close()
				return err
			}
			if err := tmp.Close(); err != nil {
				return err
			}
			if err := os.Rename(tmp.Name(), out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&campaignID, "campaign", "", "campaign id")
	cmd.Flags().StringVar(&out, "out", "", "output file (default campaign_<id>.zip)")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}
