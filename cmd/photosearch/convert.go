package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openglam/photosearch/internal/manifest"
)

type convertCommander struct {
	baseURL string
	output  string
}

func newConvertCmd() *cobra.Command {
	cmder := &convertCommander{}

	cmd := &cobra.Command{
		Use:   "convert <annotations.csv>",
		Short: "Convert a CSV annotation export into a IIIF manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return cmder.run(args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.baseURL, "base-url", "b",
		"https://example.org/iiif", "Base URL for minted manifest identifiers")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "",
		"Path for the manifest (default: stdout)")

	return cmd
}

func (c *convertCommander) run(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	doc, err := manifest.ConvertCSV(f, c.baseURL)
	if err != nil {
		return fmt.Errorf("convert csv: %w", err)
	}

	out, err := doc.Bytes()
	if err != nil {
		return fmt.Errorf("serialize manifest: %w", err)
	}
	if c.output == "" {
		fmt.Println(string(out))
		return nil
	}
	if err := os.WriteFile(c.output, out, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
