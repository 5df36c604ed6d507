// Command madoro is the coding-assistant CLI: an interactive chat loop
// over the agent, plus doctor, models, and project management commands.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose    bool
	configPath string
	basePath   string
	projectID  string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "madoro",
	Short: "Madoro - a memory-first coding assistant",
	Long: `Madoro is a coding assistant that keeps project memory in SQLite and
governance state in SSOT documents (HANDOVER.md, CONSTITUTION.md, ...).

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if basePath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("resolve home directory: %w", err)
			}
			basePath = filepath.Join(home, ".madoro")
		}
		if configPath == "" {
			configPath = filepath.Join(basePath, "config", "models.yaml")
		}

		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Print a project status report",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.Close()
		fmt.Println(s.agent.Doctor(cmd.Context()))
		return nil
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List configured models",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, key := range cfg.ModelKeys() {
			model, _ := cfg.Model(key)
			marker := "  "
			if key == cfg.DefaultModel {
				marker = "* "
			}
			name := model.DisplayName
			if name == "" {
				name = model.Name
			}
			fmt.Printf("%s%-20s %s (%s)\n", marker, key, name, model.Provider)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to models.yaml (default $HOME/.madoro/config/models.yaml)")
	rootCmd.PersistentFlags().StringVar(&basePath, "base", "", "madoro data directory (default $HOME/.madoro)")
	rootCmd.PersistentFlags().StringVarP(&projectID, "project", "p", "", "project ID to operate on (default the active project)")

	rootCmd.AddCommand(chatCmd, doctorCmd, modelsCmd, projectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
