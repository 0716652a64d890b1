// Package main is the entry point for the Parvis CLI. Parvis is a
// turn-based voice and vision assistant: a wake signal opens a
// conversation turn, the utterance is classified against the builtin
// intents, and anything the intents cannot answer is delegated to a
// language model.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/clborne/parvis/internal/bus"
	"github.com/clborne/parvis/internal/config"
	"github.com/clborne/parvis/internal/history"
	"github.com/clborne/parvis/internal/intent"
	"github.com/clborne/parvis/internal/llm"
	"github.com/clborne/parvis/internal/logging"
	"github.com/clborne/parvis/internal/orchestrator"
	"github.com/clborne/parvis/internal/speech"
	"github.com/clborne/parvis/internal/timer"
	"github.com/clborne/parvis/internal/vision"
	"github.com/clborne/parvis/internal/wake"
)

var (
	version  = "0.1.0"
	cfgPath  string
	modeFlag string
	verbose  bool
	cfg      *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "parvis",
		Short: "Parvis - turn-based voice and vision assistant",
		Long: `Parvis is a hands-free assistant built around short conversation turns:
wake it, say one thing, and it answers with a timer, the time, a
translation, a scene description, or a language-model reply.

Run the assistant:   parvis run
One-shot utterance:  parvis say "set a timer for 5 minutes"
Inspect a phrase:    parvis classify "what time is it"`,
		PersistentPreRunE: initApp,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.parvis/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&modeFlag, "mode", "", "operating mode: live, simulated or text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(sayCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(triggerCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Parvis v%s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp loads the environment file, configuration and logging before
// any command runs.
func initApp(cmd *cobra.Command, args []string) error {
	loadEnvFile()

	var err error
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if modeFlag != "" {
		cfg.Speech.Mode = modeFlag
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	return logging.Setup(logging.Config{
		Level:  level,
		File:   cfg.Logging.File,
		Pretty: true,
	})
}

// loadEnvFile pulls API keys from ~/.parvis/.env into the process
// environment so os.Getenv sees them everywhere.
func loadEnvFile() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	godotenv.Load(filepath.Join(home, ".parvis", ".env"))
}

// assistant bundles everything a command needs to drive turns.
type assistant struct {
	orch   *orchestrator.Orchestrator
	mode   orchestrator.Mode
	events *bus.Bus
	timers *timer.Registry
	store  *history.SQLiteStore
	source wake.Source
}

func (a *assistant) close() {
	if a.store != nil {
		a.store.Close()
	}
	a.events.Close()
}

// buildAssistant wires the capability implementations for the
// configured mode.
func buildAssistant() (*assistant, error) {
	mode, err := orchestrator.ParseMode(cfg.Speech.Mode)
	if err != nil {
		return nil, err
	}

	events := bus.NewWithHistory(bus.DefaultHistorySize)
	timers := timer.NewRegistry(events)

	registry := intent.NewRegistry()
	if err := intent.RegisterBuiltin(registry, intent.BuiltinDeps{
		Timers:    timers,
		Languages: cfg.Translation.Languages,
	}); err != nil {
		events.Close()
		return nil, fmt.Errorf("register intents: %w", err)
	}
	classifier := intent.NewClassifierWithThreshold(registry, cfg.Classifier.ConfidenceThreshold)

	apiKey := cfg.LLM.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	provider := llm.New(cfg.LLM.Provider, llm.Config{
		Endpoint:  cfg.LLM.Endpoint,
		APIKey:    apiKey,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	})

	var describer vision.Describer = vision.NewCannedDescriber()
	if cfg.Vision.Enabled && mode == orchestrator.ModeLive {
		describer = vision.NewHTTPDescriber(cfg.Vision.Endpoint)
	}

	var transcriber speech.Transcriber
	var synthesizer speech.Synthesizer
	switch mode {
	case orchestrator.ModeLive:
		transcriber = speech.NewHTTPTranscriber(cfg.Speech.STTEndpoint)
		synthesizer = speech.NewHTTPSynthesizer(cfg.Speech.TTSEndpoint, cfg.Speech.Voice)
	case orchestrator.ModeText:
		transcriber = speech.NewTextTranscriber(os.Stdin)
		synthesizer = speech.NewTextSynthesizer(os.Stdout)
	default:
		transcriber = speech.NewSimTranscriber()
		synthesizer = speech.NewSimSynthesizer()
	}

	// Text mode drives itself from stdin; the other modes wait on a
	// wake source.
	var source wake.Source
	if mode != orchestrator.ModeText {
		switch cfg.Wake.Source {
		case "socket":
			source = wake.NewSocketSource(cfg.Wake.SocketPath)
		default:
			source = wake.NewMockSource(cfg.Wake.MockInterval)
		}
	}

	turnLog := history.NewLog(cfg.History.MaxTurns)
	var store *history.SQLiteStore
	if cfg.History.DBPath != "" {
		store, err = history.OpenSQLite(cfg.History.DBPath)
		if err != nil {
			events.Close()
			return nil, fmt.Errorf("open history db: %w", err)
		}
		turnLog.WithSink(store)
	}

	orch := orchestrator.New(mode, orchestrator.Deps{
		Registry:    registry,
		Classifier:  classifier,
		LLM:         provider,
		Vision:      describer,
		Transcriber: transcriber,
		Synthesizer: synthesizer,
		Gate:        wake.NewGate(events),
		Events:      events,
		History:     turnLog,
	}, orchestrator.Timeouts{
		Capture:    cfg.Timeouts.Capture,
		Generation: cfg.Timeouts.Generation,
		Handler:    cfg.Timeouts.Handler,
		Synthesis:  cfg.Timeouts.Synthesis,
	})

	return &assistant{
		orch:   orch,
		mode:   mode,
		events: events,
		timers: timers,
		store:  store,
		source: source,
	}, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the assistant until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildAssistant()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.Observer.Enabled {
				observer := bus.NewObserver(a.events, cfg.Observer.Port)
				if err := observer.Start(); err != nil {
					return fmt.Errorf("start observer: %w", err)
				}
				defer observer.Stop()
			}

			if a.mode == orchestrator.ModeText {
				fmt.Println("Parvis is listening. Type an utterance and press enter; ctrl-d to quit.")
				return a.orch.RunInteractive(ctx)
			}

			err = a.orch.Start(ctx, a.source)
			if ctx.Err() != nil {
				log.Info().Msg("shutting down")
				return nil
			}
			return err
		},
	}
}

func sayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "say <utterance>",
		Short: "Run one turn for the given utterance and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Replies go to stdout regardless of the configured mode.
			cfg.Speech.Mode = string(orchestrator.ModeText)

			a, err := buildAssistant()
			if err != nil {
				return err
			}
			defer a.close()

			turn := a.orch.RunText(cmd.Context(), strings.Join(args, " "))
			if turn.Err != "" {
				return fmt.Errorf("turn failed: %s", turn.Err)
			}
			return nil
		},
	}
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <utterance>",
		Short: "Classify an utterance and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := intent.NewRegistry()
			events := bus.New()
			defer events.Close()
			if err := intent.RegisterBuiltin(registry, intent.BuiltinDeps{
				Timers:    timer.NewRegistry(events),
				Languages: cfg.Translation.Languages,
			}); err != nil {
				return err
			}

			classifier := intent.NewClassifierWithThreshold(registry, cfg.Classifier.ConfidenceThreshold)
			result := classifier.Classify(strings.Join(args, " "))

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent conversation turns from the history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.History.DBPath == "" {
				return fmt.Errorf("history persistence is disabled; set history.db_path in the config")
			}
			store, err := history.OpenSQLite(cfg.History.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No recorded turns yet.")
				return nil
			}
			for _, rec := range records {
				status := "ok"
				if !rec.Success {
					status = "failed"
				}
				fmt.Printf("%s  %-12s %-7s %4dms  %q -> %q\n",
					rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
					rec.Tag, status, rec.TotalMs, rec.Utterance, rec.Response)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of turns to show")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize pipeline performance from the history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.History.DBPath == "" {
				return fmt.Errorf("history persistence is disabled; set history.db_path in the config")
			}
			store, err := history.OpenSQLite(cfg.History.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(1000)
			if err != nil {
				return err
			}
			l := history.NewLog(len(records) + 1)
			for _, rec := range records {
				l.Append(rec)
			}
			s := l.Stats()

			fmt.Printf("Turns:         %d\n", s.Turns)
			fmt.Printf("Success rate:  %.0f%%\n", s.SuccessRate*100)
			fmt.Printf("Avg total:     %.0fms (capture %.0f, classify %.0f, handle %.0f, speak %.0f)\n",
				s.AvgTotalMs, s.AvgCaptureMs, s.AvgClassifyMs, s.AvgHandleMs, s.AvgSpeakMs)
			fmt.Printf("Fastest:       %dms\n", s.FastestMs)
			fmt.Printf("Slowest:       %dms\n", s.SlowestMs)
			return nil
		},
	}
}

func triggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Wake a running assistant through its trigger socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wake.SendTrigger(cfg.Wake.SocketPath); err != nil {
				return fmt.Errorf("is 'parvis run' active? %w", err)
			}
			fmt.Println("Triggered.")
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})
	return cmd
}
