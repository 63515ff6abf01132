// Command pacc runs the C front-end over one or more translation units:
// lexing, preprocessing, and parsing into a typed AST. Each source argument
// is processed independently; the first failure terminates with a non-zero
// exit status.
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/slaide/pacc/internal/cc/driver"
	"github.com/slaide/pacc/internal/cc/lexer"
)

type options struct {
	includeDirs    []string
	preprocessOnly bool
	parse          bool
	watch          bool
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "pacc [flags] <source.c>...",
		Short: "C23 compiler front-end",
		Long: "pacc runs translation phases 1-7 over each given source file: lexing,\n" +
			"preprocessing (macro expansion, includes, conditionals), string-literal\n" +
			"concatenation, and parsing into a typed AST.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := expandSources(args)
			if err != nil {
				return err
			}

			if opts.watch {
				return watchAndCompile(sources, opts)
			}
			return compileAll(sources, opts)
		},
	}

	rootCmd.Flags().StringArrayVarP(&opts.includeDirs, "include", "I", nil, "append a directory to the system include search path")
	rootCmd.Flags().BoolVarP(&opts.preprocessOnly, "preprocess", "p", false, "stop after the preprocessor phase and print the token stream")
	rootCmd.Flags().BoolVarP(&opts.parse, "ast", "a", false, "run through the parser phase")
	rootCmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "recompile whenever a source file changes")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// expandSources resolves the source arguments, expanding doublestar glob
// patterns; a plain path is taken as-is.
func expandSources(args []string) ([]string, error) {
	var sources []string
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[{") {
			sources = append(sources, arg)
			continue
		}

		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad source pattern %q: %v", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("source pattern %q matched no files", arg)
		}
		sources = append(sources, matches...)
	}
	return sources, nil
}

func (o *options) driverOptions() driver.Options {
	phase := driver.Phase_Tokenize
	if o.preprocessOnly {
		phase = driver.Phase_Preprocess
	}
	if o.parse {
		phase = driver.Phase_Parse
	}

	return driver.Options{
		IncludeDirs: o.includeDirs,
		StopAfter:   phase,
		Diag:        os.Stderr,
	}
}

func compileAll(sources []string, opts *options) error {
	for _, source := range sources {
		result, err := driver.Run(source, opts.driverOptions())
		if err != nil {
			return err
		}

		if opts.preprocessOnly && !opts.parse {
			printTokens(result.Tokens)
		}
	}
	return nil
}

// printTokens writes the preprocessed stream one logical line at a time.
func printTokens(tokens []lexer.Token) {
	line := -1
	var parts []string

	flush := func() {
		if len(parts) > 0 {
			fmt.Println(strings.Join(parts, " "))
			parts = parts[:0]
		}
	}

	for _, tok := range tokens {
		if tok.LogLoc.Line != line {
			flush()
			line = tok.LogLoc.Line
		}
		parts = append(parts, tok.S)
	}
	flush()
}

// watchAndCompile recompiles the sources on every change until interrupted.
// A failing compile is reported and watching continues.
func watchAndCompile(sources []string, opts *options) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, source := range sources {
		if err := watcher.Add(source); err != nil {
			return fmt.Errorf("cannot watch %s: %v", source, err)
		}
	}

	compile := func() {
		if err := compileAll(sources, opts); err != nil {
			fmt.Fprintln(os.Stderr, err)
		} else {
			log.Printf("compiled %d file(s)", len(sources))
		}
	}

	compile()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				compile()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)
		}
	}
}
