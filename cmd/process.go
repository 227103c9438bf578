package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/donation-cli/internal/fetcher"
	"github.com/sells-group/donation-cli/internal/model"
	"github.com/sells-group/donation-cli/pkg/extraction"
)

var (
	processSource string
	processSheet  string
)

var processCmd = &cobra.Command{
	Use:   "process <file-or-url>",
	Short: "Run the intake pipeline over a batch file",
	Long: `Reads a donation batch from a local CSV/XLSX file, an http(s) or ftp URL,
or a scanned document (sent to the extraction service), then normalizes,
deduplicates, matches, and stores the enriched donations.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		records, err := loadRecords(ctx, args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return eris.Errorf("no records found in %s", args[0])
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		source := processSource
		if source == "" {
			source = args[0]
		}

		result, err := env.Pipeline.Process(ctx, source, records)
		if err != nil {
			return err
		}

		s := result.Batch.Summary
		fmt.Printf("batch %s: %d in, %d merged, %d discarded\n",
			result.Batch.ID, s.Input, s.Merged, s.Discarded)
		fmt.Printf("  matched: %d  new: %d  needs review: %d  errors: %d\n",
			s.Matched, s.New, s.NeedsReview, s.Errors)
		return nil
	},
}

// loadRecords turns the argument into raw records. Remote URLs are downloaded
// first; spreadsheet and CSV files are parsed locally; anything else goes to
// the extraction service.
func loadRecords(ctx context.Context, arg string) ([]model.RawRecord, error) {
	path := arg
	switch {
	case strings.HasPrefix(arg, "http://"), strings.HasPrefix(arg, "https://"):
		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout: time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		})
		downloaded, err := downloadTemp(ctx, f, arg)
		if err != nil {
			return nil, err
		}
		defer os.Remove(downloaded)
		path = downloaded
	case strings.HasPrefix(arg, "ftp://"):
		f := fetcher.NewFTPFetcher(fetcher.FTPOptions{
			User:     cfg.Fetch.FTPUser,
			Password: cfg.Fetch.FTPPassword,
			Timeout:  time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		})
		downloaded, err := downloadTemp(ctx, f, arg)
		if err != nil {
			return nil, err
		}
		defer os.Remove(downloaded)
		path = downloaded
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return fetcher.ReadCSVFile(path)
	case ".xlsx":
		return fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetName: processSheet})
	default:
		return extractRecords(ctx, path)
	}
}

func downloadTemp(ctx context.Context, f fetcher.Fetcher, url string) (string, error) {
	tmp, err := os.CreateTemp("", "donation-batch-*"+filepath.Ext(url))
	if err != nil {
		return "", eris.Wrap(err, "create temp file")
	}
	_ = tmp.Close()

	n, err := f.DownloadToFile(ctx, url, tmp.Name())
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	zap.L().Info("batch file downloaded", zap.String("url", url), zap.Int64("bytes", n))
	return tmp.Name(), nil
}

func extractRecords(ctx context.Context, path string) ([]model.RawRecord, error) {
	if cfg.Extraction.BaseURL == "" {
		return nil, eris.Errorf("cannot parse %s locally and no extraction service configured", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open document")
	}
	defer f.Close() //nolint:errcheck

	client := extraction.NewClient(cfg.Extraction.Key, cfg.Extraction.BaseURL)
	return client.ExtractDocument(ctx, filepath.Base(path), f)
}

func init() {
	processCmd.Flags().StringVar(&processSource, "source", "", "source label for the batch (default: the file argument)")
	processCmd.Flags().StringVar(&processSheet, "sheet", "", "spreadsheet sheet name (default: first sheet)")
	rootCmd.AddCommand(processCmd)
}
