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
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opentranslate/mdtran/internal/glossary"
	"github.com/opentranslate/mdtran/internal/store"
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Manage the terminology glossary",
	Long: `Add, list, import, and delete terminology glossary entries.

Glossary entries ensure that specific source terms are always translated
to the same target term — useful for proper nouns, brand names, and
domain-specific vocabulary. An entry with an empty translation marks the
term as do-not-translate.`,
}

var glossaryListLocale string

var glossaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List glossary entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(viper.GetString("db"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		entries, err := db.ListGlossaryTerms(context.Background(), glossaryListLocale)
		if err != nil {
			return fmt.Errorf("failed to list glossary: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("Glossary is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLOCALE\tTERM\tTRANSLATION")
		for _, e := range entries {
			tr := e.Translation
			if tr == "" {
				tr = "(keep untranslated)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Locale, e.Term, tr)
		}
		return w.Flush()
	},
}

var glossaryAddLocale string

var glossaryAddCmd = &cobra.Command{
	Use:   "add <term> [translation]",
	Short: "Add or update a glossary entry",
	Long: `Add a glossary entry for a locale. Omitting the translation marks the
term as do-not-translate.

Example:
  mdtran glossary add "Kyiv" "Київ" --locale uk
  mdtran glossary add "OAuth" --locale uk`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if glossaryAddLocale == "" {
			return fmt.Errorf("--locale flag is required")
		}

		translation := ""
		if len(args) == 2 {
			translation = args[1]
		}

		db, err := store.New(viper.GetString("db"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.AddGlossaryTerm(context.Background(), glossaryAddLocale, args[0], translation); err != nil {
			return fmt.Errorf("failed to add glossary entry: %w", err)
		}
		if translation == "" {
			fmt.Printf("Added: [%s] %q (keep untranslated)\n", glossaryAddLocale, args[0])
		} else {
			fmt.Printf("Added: [%s] %q → %q\n", glossaryAddLocale, args[0], translation)
		}
		return nil
	},
}

var glossaryImportLocale string

var glossaryImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a glossary JSON file into the database",
	Long: `Import entries from a glossary JSON file. The file maps terms to a
translation string, null (do-not-translate), or a per-locale object:

  {
    "Kyiv": {"uk": "Київ", "de": "Kiew"},
    "OAuth": null
  }`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if glossaryImportLocale == "" {
			return fmt.Errorf("--locale flag is required")
		}

		resolver, err := glossary.LoadFile(args[0], glossaryImportLocale)
		if err != nil {
			return fmt.Errorf("failed to load glossary file: %w", err)
		}

		db, err := store.New(viper.GetString("db"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		ctx := context.Background()
		n := 0
		for term, translation := range resolver.Terms() {
			if err := db.AddGlossaryTerm(ctx, glossaryImportLocale, term, translation); err != nil {
				return fmt.Errorf("failed to import %q: %w", term, err)
			}
			n++
		}
		fmt.Printf("Imported %d entries for locale %s.\n", n, glossaryImportLocale)
		return nil
	},
}

var glossaryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a glossary entry by ID",
	Long: `Delete a glossary entry by its ID (shown in "mdtran glossary list").

Example:
  mdtran glossary delete gl_1234567890123456789`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(viper.GetString("db"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.DeleteGlossaryTerm(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete glossary entry: %w", err)
		}
		fmt.Printf("Deleted glossary entry: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(glossaryCmd)

	glossaryListCmd.Flags().StringVarP(&glossaryListLocale, "locale", "l", "", "Filter by locale (e.g. uk)")
	glossaryAddCmd.Flags().StringVarP(&glossaryAddLocale, "locale", "l", "", "Locale the entry applies to (e.g. uk)")
	glossaryImportCmd.Flags().StringVarP(&glossaryImportLocale, "locale", "l", "", "Locale to import for (e.g. uk)")

	glossaryCmd.AddCommand(glossaryListCmd)
	glossaryCmd.AddCommand(glossaryAddCmd)
	glossaryCmd.AddCommand(glossaryImportCmd)
	glossaryCmd.AddCommand(glossaryDeleteCmd)
}
