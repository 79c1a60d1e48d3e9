package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/site-harvester/internal/harvest"
	"github.com/JakeFAU/site-harvester/internal/pipeline"
)

func newCollectCmd() *cobra.Command {
	var maxPages int
	cmd := &cobra.Command{
		Use:   "collect <url>",
		Short: "Crawl a site and print the discovered pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := appInstance.Harvester().CollectURLs(cmd.Context(), pipeline.CollectRequest{URL: args[0], MaxPages: maxPages})
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if res.Error != "" {
				return fmt.Errorf("collect-urls: %s", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "page cap (0 uses the configured default)")
	return cmd
}

func newExtractCmd() *cobra.Command {
	var batchIndex, batchSize int
	cmd := &cobra.Command{
		Use:   "extract <url>...",
		Short: "Extract readable text for one batch of URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			items := make([]harvest.URLItem, 0, len(args))
			for _, u := range args {
				items = append(items, harvest.URLItem{URL: u})
			}
			res, err := appInstance.Harvester().ExtractContent(cmd.Context(), pipeline.ExtractRequest{
				URLs:       items,
				BatchIndex: batchIndex,
				BatchSize:  batchSize,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().IntVar(&batchIndex, "batch-index", 0, "zero-based batch to extract")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "URLs per batch (0 uses the configured default)")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var input, storeType string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze extraction results read from a JSON file",
		Long: `Reads a JSON array of extraction results (the contentResults of extract)
from --input, or stdin when --input is "-", and prints the business profile.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			items, err := readContentItems(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			res, err := appInstance.Harvester().AnalyzeInfo(cmd.Context(), pipeline.AnalyzeRequest{
				ContentItems: items,
				StoreType:    storeType,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&input, "input", "-", `extraction results file, or "-" for stdin`)
	cmd.Flags().StringVar(&storeType, "store-type", "general", "business category: general, retail, restaurant, services, saas")
	return cmd
}

func newProcessCmd() *cobra.Command {
	var (
		maxPages  int
		storeType string
	)
	cmd := &cobra.Command{
		Use:   "process <url>",
		Short: "Crawl, extract, and analyze a site in one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := appInstance.Harvester().ProcessAll(cmd.Context(), pipeline.ProcessRequest{
				URL:       args[0],
				MaxPages:  maxPages,
				StoreType: storeType,
			})
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("process-all: %s", res.Error)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "page cap (0 uses the configured default)")
	cmd.Flags().StringVar(&storeType, "store-type", "general", "business category: general, retail, restaurant, services, saas")
	return cmd
}

func readContentItems(stdin io.Reader, path string) ([]harvest.ExtractionResult, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	var items []harvest.ExtractionResult
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	return items, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
