// Command staticlint is the multichecker run over the recipebook sources.
//
// It always runs a fixed set of go/analysis passes, ineffassign, nilerr and
// the nohandlerpanic analyzer. The staticcheck, simple and stylecheck checks
// to add are read from config.json next to the binary, for example:
//
//	{
//		"Staticcheck": ["SA*"],
//		"Simple": ["S1000"],
//		"Stylecheck": ["ST1005"]
//	}
//
// A name ending in "*" enables every check with that prefix.
package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gordonklaus/ineffassign/pkg/ineffassign"
	"github.com/gostaticanalysis/nilerr"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"honnef.co/go/tools/analysis/lint"
	"honnef.co/go/tools/simple"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"

	"github.com/patric-chuzhbe/recipebook/cmd/staticlint/nohandlerpanic"
)

// Config is the name of the JSON configuration file that lists enabled checks.
const Config = `config.json`

// ConfigData describes the structure of the configuration file.
type ConfigData struct {
	Staticcheck []string
	Simple      []string
	Stylecheck  []string
}

func loadConfig() (ConfigData, error) {
	var cfg ConfigData

	appfile, err := os.Executable()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(appfile), Config))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}

	err = json.Unmarshal(data, &cfg)

	return cfg, err
}

func enabled(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
			continue
		}
		if pattern == name {
			return true
		}
	}

	return false
}

func selectAnalyzers(analyzers []*lint.Analyzer, patterns []string) []*analysis.Analyzer {
	var result []*analysis.Analyzer
	for _, v := range analyzers {
		if enabled(v.Analyzer.Name, patterns) {
			result = append(result, v.Analyzer)
		}
	}

	return result
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	myChecks := []*analysis.Analyzer{
		copylock.Analyzer,     // Checks for copying of locks by value.
		errorsas.Analyzer,     // Checks the second argument of errors.As.
		httpresponse.Analyzer, // Finds response bodies used before the error check.
		loopclosure.Analyzer,  // Detects references to loop variables inside closures.
		lostcancel.Analyzer,   // Finds contexts that are not canceled.
		printf.Analyzer,       // Verifies format strings.
		structtag.Analyzer,    // Checks for incorrect struct field tags.
		unmarshal.Analyzer,    // Detects non-pointer unmarshal targets.
		unreachable.Analyzer,  // Detects unreachable code.

		ineffassign.Analyzer, // Detects ineffective assignments.
		nilerr.Analyzer,      // Flags returning nil after an error was created.

		nohandlerpanic.Analyzer, // Forbids panic inside HTTP handlers.
	}

	myChecks = append(myChecks, selectAnalyzers(staticcheck.Analyzers, cfg.Staticcheck)...)
	myChecks = append(myChecks, selectAnalyzers(simple.Analyzers, cfg.Simple)...)
	myChecks = append(myChecks, selectAnalyzers(stylecheck.Analyzers, cfg.Stylecheck)...)

	multichecker.Main(myChecks...)
}
