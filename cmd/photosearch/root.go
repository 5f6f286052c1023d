package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openglam/photosearch/internal/version"
)

const rootLongDesc = `photosearch indexes the photograph regions of IIIF manifests into a vector
index and serves IIIF Content Search over them.

  photosearch serve      Run the search API server
  photosearch index      Index a manifest and attach its search service
  photosearch convert    Convert a CSV annotation export into a manifest`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "photosearch",
		Short:         "Visual search for IIIF photograph collections",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newConvertCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "photosearch %s\n", version.String())
		},
	}
}
