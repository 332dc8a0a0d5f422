package cmd

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/josephlewis42/bsh/core/config"
	"github.com/josephlewis42/bsh/core/shell"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cfgPath  string
	command  string
	logLevel string
)

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return config.DefaultConfigDir
	}
	return filepath.Join(home, config.DefaultConfigDir)
}

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(afero.NewOsFs(), cfgPath)
	if errors.Is(err, fs.ErrNotExist) {
		logrus.WithField("path", cfgPath).Debug("no configuration found, using defaults")
		return config.Interactive(), nil
	}
	return configuration, err
}

func setupLogging(configuration *config.Configuration, cmd *cobra.Command) error {
	level := configuration.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(parsed)
	logrus.SetOutput(cmd.ErrOrStderr())
	return nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bsh [script]",
	Short: "A small job control shell",
	Long: `bsh runs commands with pipelines, redirects and conditional lists.

With no arguments bsh reads commands from standard input, interactively when
it is a terminal. With a script it runs the script's lines in order, and with
-c it runs a single command line.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}
		if err := setupLogging(configuration, cmd); err != nil {
			return err
		}

		hasCommand := cmd.Flags().Changed("command")
		interactive := !hasCommand && len(args) == 0 && term.IsTerminal(int(os.Stdin.Fd()))
		if !interactive {
			configuration = configuration.Noninteractive()
		}

		sh, err := shell.New(shell.Options{
			Config:      configuration,
			Interactive: interactive,
		})
		if err != nil {
			return err
		}

		switch {
		case hasCommand:
			sh.Exit(sh.ExecuteString(command))
		case len(args) == 1:
			sh.Exit(sh.ExecuteFile(args[0]))
		default:
			sh.Run()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.Flags().SetInterspersed(false)
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single command line and exit")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "config path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}
