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
	"github.com/spf13/viper"

	"github.com/opentranslate/mdtran/internal/pipeline"
	"github.com/opentranslate/mdtran/internal/transform"
)

var (
	statsInput   string
	statsCatalog string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show translation coverage for a file",
	Long: `Report how much of a Markdown file its PO catalog already covers:
translated, fuzzy (source edited since translation), pending, and
skipped blocks, broken down by block kind. No translation service is
contacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsCatalog == "" {
			statsCatalog = strings.TrimSuffix(statsInput, filepath.Ext(statsInput)) + ".po"
		}

		runner := pipeline.NewRunner(noopService{}, pipeline.Options{
			TargetLang: viper.GetString("target"),
			CodeLangs:  codeLangsOrNil(),
		})
		report, err := runner.BuildReport(statsInput, statsCatalog)
		if err != nil {
			return err
		}
		fmt.Print(report.Format())
		return nil
	},
}

func codeLangsOrNil() []string {
	if len(codeLangs) > 0 {
		return codeLangs
	}
	return nil
}

// noopService satisfies the pipeline for offline inspection; reports
// never translate anything.
type noopService struct{}

func (noopService) Name() string { return "none" }

func (noopService) Capabilities() transform.Capabilities { return transform.Capabilities{} }

func (noopService) Translate(ctx context.Context, req transform.Request) (*transform.Result, error) {
	return nil, fmt.Errorf("stats command does not translate")
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVarP(&statsInput, "input", "i", "", "Source Markdown file (required)")
	statsCmd.Flags().StringVar(&statsCatalog, "po", "", "Catalog path (default: input path with .po extension)")

	statsCmd.MarkFlagRequired("input")
}
