/*
Copyright © 2025 The mdtran Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	inputFile   string
	outputFile  string
	catalogFile string
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate one Markdown file incrementally",
	Long: `Translate a Markdown file block by block. The PO catalog records
every block's source and translation; on later runs only new or edited
blocks are sent to the service, everything else is reused.

The catalog lives next to the output file by default (output path with
a .po extension). Delete it to force a full retranslation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}
		if catalogFile == "" {
			catalogFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".po"
		}

		ctx := context.Background()
		runner, cleanup, err := buildRunner(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := runner.ProcessDocument(ctx, inputFile, outputFile, catalogFile)
		if err != nil {
			return err
		}

		printFileStats(stats)
		if stats.Failed > 0 {
			return fmt.Errorf("%d block(s) failed; rerun to retry them", stats.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input Markdown file (required)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file for the translation (required)")
	translateCmd.Flags().StringVar(&catalogFile, "po", "", "Catalog path (default: output path with .po extension)")

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("output")
}
