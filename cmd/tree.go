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

	"github.com/spf13/cobra"
)

var (
	treeSourceDir  string
	treeTargetDir  string
	treeCatalogDir string
	treeWorkers    int
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Translate a directory tree of Markdown files",
	Long: `Walk a directory tree, translate every .md file found, and mirror
the relative layout into the target and catalog directories. Files are
independent: one failing file never stops the others.

The catalog directory defaults to the target directory, putting each
.po file next to its translated document.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if treeCatalogDir == "" {
			treeCatalogDir = treeTargetDir
		}

		ctx := context.Background()
		runner, cleanup, err := buildRunner(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		stats, err := runner.ProcessTree(ctx, treeSourceDir, treeTargetDir, treeCatalogDir, treeWorkers)
		if err != nil {
			return err
		}

		for _, fs := range stats.Files {
			printFileStats(fs)
		}
		fmt.Printf("\n%d processed, %d up to date, %d failed\n",
			stats.Processed, stats.Skipped, stats.Failed)
		if stats.Failed > 0 {
			return fmt.Errorf("%d file(s) failed", stats.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)

	treeCmd.Flags().StringVar(&treeSourceDir, "source-dir", "", "Directory with source Markdown files (required)")
	treeCmd.Flags().StringVar(&treeTargetDir, "target-dir", "", "Directory for translated files (required)")
	treeCmd.Flags().StringVar(&treeCatalogDir, "po-dir", "", "Directory for PO catalogs (default: target directory)")
	treeCmd.Flags().IntVar(&treeWorkers, "workers", 4, "Concurrent files in flight")

	treeCmd.MarkFlagRequired("source-dir")
	treeCmd.MarkFlagRequired("target-dir")
}
