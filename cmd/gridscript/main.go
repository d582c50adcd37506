package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gridscript/internal/config"
	"gridscript/internal/document"
	"gridscript/internal/monitor"
	"gridscript/internal/script"
	"gridscript/internal/sheet"
)

var (
	configPath string
	docPath    string
	writeBack  bool
	jsonOut    bool
	timeout    time.Duration
	selection  string
)

func main() {
	root := &cobra.Command{
		Use:           "gridscript",
		Short:         "Sandboxed Lua scripting for spreadsheet documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")
	root.PersistentFlags().StringVar(&docPath, "doc", "", "CSV document to evaluate against")
	root.PersistentFlags().StringVar(&selection, "selection", "A1", "Selection range, e.g. B2:D10")

	evalCmd := &cobra.Command{
		Use:   "eval [code]",
		Short: "Evaluate a script given inline or on stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEval,
	}
	evalCmd.Flags().DurationVar(&timeout, "timeout", 0, "Wall-clock limit (0 = config default)")
	evalCmd.Flags().BoolVar(&writeBack, "write", false, "Apply staged operations back to the CSV document")
	evalCmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full result as JSON")
	root.AddCommand(evalCmd)

	runCmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Evaluate a script file",
		Args:  cobra.ExactArgs(1),
		RunE:  runFile,
	}
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "Wall-clock limit (0 = config default)")
	runCmd.Flags().BoolVar(&writeBack, "write", false, "Apply staged operations back to the CSV document")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full result as JSON")
	root.AddCommand(runCmd)

	root.AddCommand(&cobra.Command{
		Use:   "repl",
		Short: "Interactive session against a live document",
		Args:  cobra.NoArgs,
		RunE:  runRepl,
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configPath)
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func runEval(_ *cobra.Command, args []string) error {
	var source string
	if len(args) > 0 {
		source = args[0]
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		source = string(data)
	}
	return evaluate(source)
}

func runFile(_ *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0]) // #nosec G304 -- path comes from CLI arg
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	return evaluate(string(data))
}

func evaluate(source string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	limits := cfg.Limits()
	if timeout > 0 {
		limits.Timeout = timeout
	}

	doc, err := loadDocument()
	if err != nil {
		return err
	}

	sel, err := sheet.ParseRect(selection)
	if err != nil {
		return fmt.Errorf("parsing selection: %w", err)
	}

	rt, err := script.New(limits, monitor.NewMetrics())
	if err != nil {
		return err
	}
	defer rt.Close()

	var cancel atomic.Bool
	stop := notifyCancel(&cancel)
	defer stop()

	res := rt.Execute(context.Background(), script.Request{
		Source:    source,
		Snapshot:  doc.Snapshot(),
		Selection: sel,
		Cancel:    &cancel,
	})

	printResult(res)

	if res.OK() && res.HasMutations() {
		doc.Apply(res.Ops)
		if writeBack && docPath != "" {
			if err := document.WriteCSV(docPath, doc); err != nil {
				return err
			}
			log.Info().Int("mutations", res.Mutations).Str("path", docPath).Msg("document updated")
		}
	}

	if !res.OK() {
		os.Exit(1)
	}
	return nil
}

func runRepl(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	doc, err := loadDocument()
	if err != nil {
		return err
	}

	sel, err := sheet.ParseRect(selection)
	if err != nil {
		return fmt.Errorf("parsing selection: %w", err)
	}

	rt, err := script.New(cfg.Limits(), monitor.NewMetrics())
	if err != nil {
		return err
	}
	defer rt.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "grid> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil { // io.EOF
			break
		}
		source := strings.TrimSpace(line)
		if source == "" {
			continue
		}
		if source == "exit" || source == "quit" {
			break
		}

		var cancel atomic.Bool
		stop := notifyCancel(&cancel)
		res := rt.Execute(context.Background(), script.Request{
			Source:    source,
			Snapshot:  doc.Snapshot(),
			Selection: sel,
			Cancel:    &cancel,
		})
		stop()

		printResult(res)

		// Only a clean run mutates the live document; an aborted or
		// failed script's staged operations are discarded whole.
		if res.OK() && res.HasMutations() {
			doc.Apply(res.Ops)
			fmt.Printf("-- %d cell(s) updated\n", res.Mutations)
		}
	}

	if writeBack && docPath != "" {
		return document.WriteCSV(docPath, doc)
	}
	return nil
}

func loadDocument() (*document.Document, error) {
	if docPath == "" {
		return document.New(0, 0), nil
	}
	return document.LoadCSV(docPath)
}

// notifyCancel flips the cancel flag on SIGINT/SIGTERM so a runaway
// script aborts at the next governor check instead of killing the
// process. Returns a stop function restoring default handling.
func notifyCancel(cancel *atomic.Bool) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			cancel.Store(true)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func printResult(res *script.Result) {
	if jsonOut {
		formatted, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(formatted))
		return
	}
	for _, line := range res.Output {
		fmt.Println(line)
	}
	if res.HasValue {
		fmt.Println(res.Value)
	}
	if res.Error != "" {
		fmt.Fprintln(os.Stderr, "error:", res.Error)
	}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.gridscript_history"
}
