package main

import (
	"fmt"
	"io"

	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/dvloznov/fraud-scoring/internal/gcs"
	"github.com/dvloznov/fraud-scoring/internal/model"
	"github.com/spf13/cobra"
)

func modelCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect and publish the fraud model artifact",
	}

	cmd.AddCommand(modelCheckCmd(opts))
	cmd.AddCommand(modelUploadCmd(opts))
	return cmd
}

func modelCheckCmd(opts *rootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load the model artifact and verify it takes the scoring features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				path = cfg.Model.Path
			}

			adapter := model.NewAdapter(path, gcs.NewStorage(), opts.logger(cmd))
			if _, err := adapter.Load(cmd.Context()); err != nil {
				return fmt.Errorf("model check failed: %w", err)
			}

			info := adapter.Info()
			return opts.print(cmd.OutOrStdout(), info, func(w io.Writer) {
				fmt.Fprintf(w, "Model:     %s\n", info.Path)
				fmt.Fprintf(w, "Features:  %d (%v)\n", info.NFeatures, domain.FeatureNames)
				fmt.Fprintln(w, "Status:    OK")
			})
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "artifact path or gs:// URI (default model.path from config)")
	return cmd
}

func modelUploadCmd(opts *rootOptions) *cobra.Command {
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "upload [local-file] [gs-uri]",
		Short: "Verify a local artifact and upload it to Cloud Storage",
		Example: `  fraudctl model upload models/fraud_detection_model.bin gs://fraud-models/xgb/v3.bin
  fraudctl model upload model.bin gs://fraud-models/xgb/v3.bin --skip-check`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, uri := args[0], args[1]
			if _, _, err := gcs.ParseURI(uri); err != nil {
				return err
			}

			ctx := cmd.Context()
			log := opts.logger(cmd)

			if !skipCheck {
				if _, err := model.NewAdapter(local, nil, log).Load(ctx); err != nil {
					return fmt.Errorf("refusing to upload: %w", err)
				}
			}

			if err := gcs.NewStorage().Upload(ctx, local, uri); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s\n", local, uri)
			fmt.Fprintf(cmd.OutOrStdout(), "Set model.path (or FRAUD_MODEL_PATH) to %s to serve it.\n", uri)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "upload without loading the artifact first")
	return cmd
}
