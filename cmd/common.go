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

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/opentranslate/mdtran/internal/glossary"
	"github.com/opentranslate/mdtran/internal/pipeline"
	"github.com/opentranslate/mdtran/internal/placeholder"
	"github.com/opentranslate/mdtran/internal/refiner"
	"github.com/opentranslate/mdtran/internal/store"
	"github.com/opentranslate/mdtran/internal/transform"
)

// Backend and run flags shared by translate, tree and watch. Each is
// bound to a viper key so ~/.mdtran.yaml and MDTRAN_* variables can
// supply it; explicit flags win.
var (
	serviceName     string
	ollamaURL       string
	ollamaModel     string
	openrouterKey   string
	openrouterModel string
	credentials     string
	extraPrompt     string

	targetLang    string
	maxReferences int
	parallelism   int
	codeLangs     []string
	protect       bool

	glossaryPath string
	dbPath       string
	noCache      bool

	useRefine    bool
	refinerModel string
	refinerURL   string
)

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&serviceName, "service", "ollama", "Translation service: ollama, openrouter, google")
	pf.StringVar(&ollamaURL, "ollama-url", "http://localhost:11434", "Ollama base URL")
	pf.StringVar(&ollamaModel, "ollama-model", "llama3.2", "Ollama model name")
	pf.StringVar(&openrouterKey, "openrouter-key", "", "OpenRouter API key")
	pf.StringVar(&openrouterModel, "openrouter-model", "", "OpenRouter model (default used if empty)")
	pf.StringVar(&credentials, "credentials", "", "Path to Google Cloud credentials")
	pf.StringVar(&extraPrompt, "instructions", "", "Extra instructions appended to the translation prompt")

	pf.StringVarP(&targetLang, "target", "t", "", "Target language code")
	pf.IntVar(&maxReferences, "max-references", 5, "Few-shot reference pairs per request")
	pf.IntVar(&parallelism, "parallel", 1, "Concurrent transform calls per document")
	pf.StringSliceVar(&codeLangs, "code-langs", nil, "Fence languages eligible for translation (default: all)")
	pf.BoolVar(&protect, "protect", false, "Protect inline code, tags and link targets with placeholders")

	pf.StringVar(&glossaryPath, "glossary", "", "Glossary JSON file")
	pf.StringVar(&dbPath, "db", "./data/mdtran.db", "Database path for translation memory and glossary")
	pf.BoolVar(&noCache, "no-cache", false, "Disable the translation memory")

	pf.BoolVar(&useRefine, "refine", false, "Enable the second refinement pass")
	pf.StringVar(&refinerModel, "refiner-model", "llama3.2", "Refiner model name")
	pf.StringVar(&refinerURL, "refiner-url", "http://localhost:11434", "Refiner Ollama URL")

	for key, flag := range map[string]string{
		"service":          "service",
		"ollama_url":       "ollama-url",
		"ollama_model":     "ollama-model",
		"openrouter_key":   "openrouter-key",
		"openrouter_model": "openrouter-model",
		"credentials":      "credentials",
		"target":           "target",
		"glossary":         "glossary",
		"db":               "db",
	} {
		viper.BindPFlag(key, pf.Lookup(flag))
	}
}

// buildService constructs the configured transform backend.
func buildService() (transform.Service, error) {
	instructions := extraPrompt
	if protect {
		if instructions != "" {
			instructions += " "
		}
		instructions += placeholder.InstructionHint()
	}

	switch name := viper.GetString("service"); name {
	case "ollama":
		return transform.NewOllamaService(viper.GetString("ollama_url"), viper.GetString("ollama_model"), instructions), nil
	case "openrouter":
		key := viper.GetString("openrouter_key")
		if key == "" {
			return nil, fmt.Errorf("openrouter requires --openrouter-key or MDTRAN_OPENROUTER_KEY")
		}
		return transform.NewOpenRouterService(key, "", viper.GetString("openrouter_model"), instructions), nil
	case "google":
		return transform.NewGoogleService(viper.GetString("credentials")), nil
	default:
		return nil, fmt.Errorf("unknown service: %s", name)
	}
}

// buildRunner assembles a pipeline runner from the shared flags. The
// returned cleanup closes the store and must be called when the run is
// done; it is non-nil even when no store was opened.
func buildRunner(ctx context.Context) (*pipeline.Runner, func(), error) {
	lang := viper.GetString("target")
	if lang == "" {
		return nil, nil, fmt.Errorf("target language is required (--target)")
	}
	if _, err := language.Parse(lang); err != nil {
		return nil, nil, fmt.Errorf("invalid target language %q: %w", lang, err)
	}

	svc, err := buildService()
	if err != nil {
		return nil, nil, err
	}

	opts := pipeline.Options{
		TargetLang:    lang,
		MaxReferences: maxReferences,
		Parallel:      parallelism,
		Protect:       protect,
		Logger:        logrus.StandardLogger(),
	}
	if len(codeLangs) > 0 {
		opts.CodeLangs = codeLangs
	}

	cleanup := func() {}

	if path := viper.GetString("db"); !noCache && path != "" {
		db, derr := store.New(path)
		if derr != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", derr)
		}
		opts.Memory = db
		cleanup = func() { db.Close() }

		if terms, terr := db.GetGlossaryTerms(ctx, lang); terr == nil && len(terms) > 0 {
			opts.Glossary = glossary.NewResolver(terms)
		}
	}

	if path := viper.GetString("glossary"); path != "" {
		fileGlossary, gerr := glossary.LoadFile(path, lang)
		if gerr != nil {
			// A broken glossary degrades translation quality, it does
			// not stop the run.
			logrus.WithError(gerr).WithField("glossary", path).Warn("ignoring unreadable glossary")
		} else if opts.Glossary == nil {
			opts.Glossary = fileGlossary
		} else {
			// File terms win over stored ones.
			opts.Glossary.Merge(fileGlossary)
		}
	}

	if useRefine {
		opts.Refiner = refiner.NewOllamaRefiner(refinerModel, refinerURL)
	}

	return pipeline.NewRunner(svc, opts), cleanup, nil
}

// printFileStats writes the per-file summary the way the translate and
// tree commands report it.
func printFileStats(stats *pipeline.FileStats) {
	fmt.Printf("%s: %d blocks, %d translated, %d reused, %d skipped, %d failed (%.1f%% coverage)\n",
		stats.Source, stats.Blocks, stats.Translated, stats.Reused,
		stats.Skipped, stats.Failed, stats.Coverage*100)
	for _, be := range stats.Errors {
		fmt.Fprintf(os.Stderr, "  failed %s: %v\n", be.Key, be.Err)
	}
}
