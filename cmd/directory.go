package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tre1322/best-of-analyzer/internal/directory"
	"github.com/tre1322/best-of-analyzer/internal/reference"
	"github.com/tre1322/best-of-analyzer/pkg/google"
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Build and manage the business master directory",
}

// -- directory collect --

var directoryCollectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Search Google Places for every category and city",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("directory"); err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		toStore, _ := cmd.Flags().GetBool("store")

		collector := directory.NewCollector(google.NewClient(cfg.Directory.GoogleAPIKey), &cfg.Directory)
		res, err := collector.Collect(ctx)
		if err != nil {
			return err
		}

		if output != "" {
			if _, err := directory.SaveCSV(output, res.Businesses); err != nil {
				return err
			}
		}
		if toStore {
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			n, err := directory.Save(ctx, st, res.Businesses)
			if err != nil {
				return err
			}
			zap.L().Info("directory stored", zap.Int("businesses", n))
		}

		if len(res.Failed) > 0 {
			zap.L().Warn("some searches failed", zap.Int("failed", len(res.Failed)), zap.Int("queries", res.Queries))
		}
		return nil
	},
}

// -- directory import --

var directoryImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a master directory CSV and anchor rules into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		masterPath, _ := cmd.Flags().GetString("master")
		anchorsPath, _ := cmd.Flags().GetString("anchors")
		if masterPath == "" && anchorsPath == "" {
			return eris.New("directory import: --master or --anchors is required")
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		src := reference.FileSource{AnchorsPath: anchorsPath, MasterPath: masterPath}

		if anchorsPath != "" {
			rules, err := src.Anchors(ctx)
			if err != nil {
				return eris.Wrap(err, "directory import")
			}
			if err := st.ReplaceAnchors(ctx, rules); err != nil {
				return eris.Wrap(err, "directory import")
			}
			zap.L().Info("anchor rules imported", zap.Int("rules", len(rules)), zap.String("file", anchorsPath))
		}

		if masterPath != "" {
			businesses, err := src.Businesses(ctx)
			if err != nil {
				return eris.Wrap(err, "directory import")
			}
			n, err := st.UpsertBusinesses(ctx, businesses)
			if err != nil {
				return eris.Wrap(err, "directory import")
			}
			zap.L().Info("master directory imported", zap.Int("businesses", n), zap.String("file", masterPath))
		}
		return nil
	},
}

// -- directory export --

var directoryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored master directory to CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		businesses, err := st.Businesses(ctx)
		if err != nil {
			return eris.Wrap(err, "directory export")
		}

		if output == "-" {
			return reference.WriteMaster(os.Stdout, businesses)
		}
		_, err = directory.SaveCSV(output, businesses)
		return err
	},
}

func init() {
	directoryCollectCmd.Flags().String("output", "business_master.csv", "CSV output path (empty to skip)")
	directoryCollectCmd.Flags().Bool("store", false, "also upsert results into the configured store")

	directoryImportCmd.Flags().String("master", "", "master directory CSV")
	directoryImportCmd.Flags().String("anchors", "", "anchor rules file (.csv or .yaml)")

	directoryExportCmd.Flags().String("output", "business_master.csv", "CSV output path, or - for stdout")

	directoryCmd.AddCommand(directoryCollectCmd)
	directoryCmd.AddCommand(directoryImportCmd)
	directoryCmd.AddCommand(directoryExportCmd)
	rootCmd.AddCommand(directoryCmd)
}
