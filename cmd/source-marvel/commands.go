package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/marvel-comics-source/pkg/client"
	"github.com/Sternrassler/marvel-comics-source/pkg/metrics"
	"github.com/Sternrassler/marvel-comics-source/pkg/protocol"
	"github.com/Sternrassler/marvel-comics-source/pkg/source"
)

func newSpecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spec",
		Short: "Print the connector specification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return protocol.NewEmitter(cmd.OutOrStdout()).EmitSpec(source.Specification())
		},
	}
}

func newCheckCmd(flags *globalFlags) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the credentials with one signed request",
		Long: `check makes a single signed request for the first comics page and prints
a CONNECTION_STATUS message. A failed check is reported in the message and
still exits 0; only broken output exits non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			emitter := protocol.NewEmitter(cmd.OutOrStdout())

			src, cleanup, err := newSource(cmd.Context(), configPath, flags)
			if err != nil {
				return emitter.EmitConnectionStatus(protocol.ConnectionStatus{
					Status:  protocol.StatusFailed,
					Message: err.Error(),
				})
			}
			defer cleanup()

			return emitter.EmitConnectionStatus(src.Check(cmd.Context()).Status())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the connector config JSON file")
	return cmd
}

func newDiscoverCmd(flags *globalFlags) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Print the catalog of available streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, cleanup, err := newSource(cmd.Context(), configPath, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			return protocol.NewEmitter(cmd.OutOrStdout()).EmitCatalog(src.Discover())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the connector config JSON file")
	return cmd
}

func newReadCmd(flags *globalFlags) *cobra.Command {
	var configPath, catalogPath string

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read the selected streams and print one RECORD per page",
		RunE: func(cmd *cobra.Command, args []string) error {
			emitter := protocol.NewEmitter(cmd.OutOrStdout())

			var catalog *protocol.ConfiguredCatalog
			if catalogPath != "" {
				var err error
				catalog, err = protocol.ReadConfiguredCatalog(catalogPath)
				if err != nil {
					_ = emitter.EmitError(err, protocol.FailureConfig)
					return err
				}
			}

			src, cleanup, err := newSource(cmd.Context(), configPath, flags)
			if err != nil {
				_ = emitter.EmitError(err, protocol.FailureConfig)
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if flags.metricsAddr != "" {
				go func() {
					if err := metrics.Serve(ctx, flags.metricsAddr); err != nil {
						log.Error().Err(err).Str("addr", flags.metricsAddr).Msg("Metrics server failed")
					}
				}()
			}

			if _, err := src.Read(ctx, catalog, emitter); err != nil {
				_ = emitter.EmitError(err, failureType(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the connector config JSON file")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Path to the configured catalog JSON file (default: all streams)")
	return cmd
}

// failureType reports gateway rejections of the request itself (bad keys,
// bad parameters) as config errors; everything else is a system error.
func failureType(err error) protocol.FailureType {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorClass == client.ErrorClassClient {
		return protocol.FailureConfig
	}
	return protocol.FailureSystem
}
