package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/garnizeh/wildspot/internal/ai"
	"github.com/spf13/cobra"
)

func classifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <image>",
		Short: "Classify an image with the configured provider without recording it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			d, repo, err := openStore(cmd.Context(), cfg, logger, cfg.MigrateOnStart)
			if err != nil {
				return err
			}
			defer d.Close()

			provider, err := ai.NewProvider(cmd.Context(), cfg, repo, repo, logger)
			if err != nil {
				return err
			}
			defer provider.Close()

			res := provider.Classifier.Classify(cmd.Context(), data)
			if err := res.Err(); err != nil {
				if res.Raw != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "raw response:\n%s\n", res.Raw)
				}
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Provider string `json:"provider"`
				Demo     bool   `json:"demo"`
				Report   any    `json:"report"`
			}{res.Provider, res.Demo, res.Report})
		},
	}
}
