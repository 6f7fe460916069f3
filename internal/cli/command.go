package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/snonux/lingogate/internal"
	"codeberg.org/snonux/lingogate/internal/api"
)

// RunFunc is the body of a subcommand
type RunFunc func(cmd *cobra.Command, args []string) error

// Handlers are the actions behind each command. A nil handler leaves the
// command without a run function so it only prints its help.
type Handlers struct {
	Translate RunFunc
	Batch     RunFunc
	Languages RunFunc
	History   RunFunc
	DevServer RunFunc
	GUI       RunFunc
}

// CreateRootCommand creates and configures the root cobra command
func CreateRootCommand(flags *Flags, h Handlers) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lingogate",
		Short: "Verification-gated translation client",
		Long: `lingogate translates text through a translation service that is
protected by a human verification challenge.

The challenge is shown in your browser; once solved the service hands out
a short-lived pass which is reused for further requests.

Examples:
  lingogate                                  # Launch the desktop window (default)
  lingogate translate --to de "Good morning" # Translate one text
  echo "Hello" | lingogate translate --to fr-FR
  lingogate batch --from en-US --to fr-FR,de,ja "Thank you"
  lingogate devserver --engine echo          # Local service for testing`,
		Args:         cobra.NoArgs,
		Version:      internal.Version,
		SilenceUsage: true,
	}
	setRun(rootCmd, h.GUI)

	setupPersistentFlags(rootCmd, flags)
	addWindowFlags(rootCmd, flags)

	rootCmd.AddCommand(
		newTranslateCommand(flags, h.Translate),
		newBatchCommand(flags, h.Batch),
		newLanguagesCommand(h.Languages),
		newHistoryCommand(flags, h.History),
		newDevServerCommand(flags, h.DevServer),
		newGUICommand(flags, h.GUI),
	)

	return rootCmd
}

func setRun(cmd *cobra.Command, run RunFunc) {
	if run != nil {
		cmd.RunE = run
	}
}

func setupPersistentFlags(cmd *cobra.Command, flags *Flags) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.CfgFile, "config", "", "config file (default is $HOME/.lingogate.yaml)")
	pf.StringVar(&flags.APIBase, "api-base", "", "Translation service base URL (default: $LINGOGATE_API_BASE or "+api.DefaultBaseURL+")")
	pf.DurationVar(&flags.Timeout, "timeout", flags.Timeout, "Timeout for one translation request")
	pf.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level: debug, info, warn, error")
	pf.StringVar(&flags.LogFormat, "log-format", flags.LogFormat, "Log format: text or json")
	pf.StringVar(&flags.Theme, "theme", flags.Theme, "Verification widget theme: light, dark or auto")
	pf.StringVar(&flags.WidgetListen, "widget-listen", flags.WidgetListen, "Address of the local verification page server")
	pf.StringVar(&flags.StateDir, "state-dir", flags.StateDir, "Directory for preferences and history")
	pf.StringVar(&flags.Locale, "locale", "", "Message language: en, fr, de, es (default: last used, else en)")
	pf.BoolVar(&flags.NoBrowser, "no-browser", false, "Only print the verification URL instead of opening a browser")

	bindPersistentFlags(cmd)
}

func bindPersistentFlags(cmd *cobra.Command) {
	bindFlags(cmd.PersistentFlags(), map[string]string{
		"timeout":       "api.timeout",
		"log-level":     "log.level",
		"log-format":    "log.format",
		"theme":         "widget.theme",
		"widget-listen": "widget.listen",
		"state-dir":     "state.dir",
		"locale":        "ui.locale",
	})
}

// bindFlags binds each named flag of fs to its config key
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	fs.VisitAll(func(f *pflag.Flag) {
		if key, ok := keys[f.Name]; ok {
			viper.BindPFlag(key, f)
		}
	})
}

func addRequestFlags(cmd *cobra.Command, flags *Flags) {
	cmd.Flags().StringVarP(&flags.From, "from", "f", "", "Source language code or auto (default: last used, else auto)")
	cmd.Flags().BoolVar(&flags.NoHistory, "no-history", false, "Do not record translations in the history")
	cmd.Flags().StringVar(&flags.Token, "token", "", "Use an already obtained verification token instead of the browser challenge")
}

func newTranslateCommand(flags *Flags, run RunFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "Translate text into one language",
		Long: `Translate text into one target language. The text is taken from the
arguments, or from standard input when no arguments are given.`,
		Args: cobra.ArbitraryArgs,
	}
	setRun(cmd, run)

	addRequestFlags(cmd, flags)
	cmd.Flags().StringVarP(&flags.To, "to", "t", "", "Target language code (default: last used, else en-US)")
	return cmd
}

func newBatchCommand(flags *Flags, run RunFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [text]",
		Short: "Translate text into several languages",
		Long: `Translate one text into several target languages, one after another.
The first failure stops the run; translations finished so far are kept.`,
		Args: cobra.ArbitraryArgs,
	}
	setRun(cmd, run)

	addRequestFlags(cmd, flags)
	cmd.Flags().StringVarP(&flags.To, "to", "t", "", "Comma separated target language codes (default: last used)")
	cmd.Flags().StringVar(&flags.TargetsFile, "targets-file", "", "Read target language codes from file (one per line)")
	cmd.Flags().StringVarP(&flags.OutputDir, "output", "o", "", "Write each translation to <dir>/<code>.txt")
	cmd.Flags().BoolVar(&flags.Archive, "archive", false, "Move an existing output directory to archive/ first")
	return cmd
}

func newLanguagesCommand(run RunFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List supported language codes",
		Args:  cobra.NoArgs,
	}
	setRun(cmd, run)
	return cmd
}

func newHistoryCommand(flags *Flags, run RunFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show, export or clear recent translations",
		Args:  cobra.NoArgs,
	}
	setRun(cmd, run)

	cmd.Flags().IntVarP(&flags.Limit, "limit", "n", flags.Limit, "Number of entries to show")
	cmd.Flags().BoolVar(&flags.Clear, "clear", false, "Delete all history entries")
	cmd.Flags().StringVarP(&flags.Export, "export", "e", "", "Write the shown entries as Anki-importable CSV to this file")
	return cmd
}

func newDevServerCommand(flags *Flags, run RunFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local translation service for testing",
		Long: `Run a local server implementing the translation and site key endpoints.
Tokens are accepted without checking unless --secret is given, in which
case they are validated against the challenge provider.`,
		Args: cobra.NoArgs,
	}
	setRun(cmd, run)

	f := cmd.Flags()
	f.StringVar(&flags.Listen, "listen", flags.Listen, "Listen address")
	f.StringVar(&flags.Engine, "engine", flags.Engine, "Translation engine: echo, openai or gemini")
	f.StringVar(&flags.Model, "model", "", "Model name for the openai or gemini engine")
	f.StringVar(&flags.Secret, "secret", "", "Challenge provider secret key for token validation")
	f.StringVar(&flags.SiteKey, "site-key", "", "Public site key handed to clients (default: provider test key)")
	f.StringVar(&flags.HeaderName, "header-name", "", "Header clients send the token in (default: "+api.DefaultTokenHeader+")")
	f.DurationVar(&flags.PassTTL, "pass-ttl", flags.PassTTL, "Lifetime of issued passes")
	f.BoolVar(&flags.ListModels, "list-models", false, "List available OpenAI chat models and exit")
	f.BoolVar(&flags.NoCache, "no-cache", false, "Disable the in-memory translation cache")

	bindFlags(f, map[string]string{
		"listen":      "devserver.listen",
		"engine":      "devserver.engine",
		"model":       "devserver.model",
		"secret":      "devserver.secret",
		"site-key":    "devserver.site_key",
		"header-name": "devserver.header_name",
		"pass-ttl":    "devserver.pass_ttl",
	})
	return cmd
}

func newGUICommand(flags *Flags, run RunFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gui",
		Short: "Open the desktop window",
		Args:  cobra.NoArgs,
	}
	setRun(cmd, run)
	addWindowFlags(cmd, flags)
	return cmd
}

// addWindowFlags registers the window options on cmd. The root command
// carries them too since it opens the window when run alone.
func addWindowFlags(cmd *cobra.Command, flags *Flags) {
	f := cmd.Flags()
	f.BoolVar(&flags.AutoRetry, "auto-retry", false, "Repeat an action blocked on verification once the challenge is solved")
	bindFlags(f, map[string]string{"auto-retry": "ui.auto_retry"})
}

// InitConfig initializes viper configuration
func InitConfig(cfgFile string) {
	// A missing .env is fine
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			return
		}

		// Search config in home directory with name ".lingogate" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".lingogate")
	}

	// Environment variables, e.g. LINGOGATE_LOG_LEVEL for log.level
	viper.SetEnvPrefix("LINGOGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// ResolveFlags copies the effective configuration into flags. For every
// bound key a changed flag wins, then the environment, then the config file
// and finally the flag default.
func ResolveFlags(flags *Flags) {
	if d := viper.GetDuration("api.timeout"); d > 0 {
		flags.Timeout = d
	}
	resolveString(&flags.LogLevel, "log.level")
	resolveString(&flags.LogFormat, "log.format")
	resolveString(&flags.Theme, "widget.theme")
	resolveString(&flags.WidgetListen, "widget.listen")
	resolveString(&flags.StateDir, "state.dir")
	resolveString(&flags.Locale, "ui.locale")
	if viper.GetBool("ui.auto_retry") {
		flags.AutoRetry = true
	}

	resolveString(&flags.Listen, "devserver.listen")
	resolveString(&flags.Engine, "devserver.engine")
	resolveString(&flags.Model, "devserver.model")
	resolveString(&flags.Secret, "devserver.secret")
	resolveString(&flags.SiteKey, "devserver.site_key")
	resolveString(&flags.HeaderName, "devserver.header_name")
	if d := viper.GetDuration("devserver.pass_ttl"); d > 0 {
		flags.PassTTL = d
	}
}

func resolveString(dst *string, key string) {
	if v := viper.GetString(key); v != "" {
		*dst = v
	}
}

// GetAPIBase resolves the translation service base URL: the --api-base
// flag, then LINGOGATE_API_BASE, then api.base_url from the config file
func GetAPIBase(flagValue string) string {
	base := flagValue
	if base == "" {
		base = os.Getenv("LINGOGATE_API_BASE")
	}
	if base == "" {
		base = viper.GetString("api.base_url")
	}
	if base == "" {
		base = api.DefaultBaseURL
	}
	return strings.TrimRight(base, "/")
}

// GetOpenAIKey retrieves the OpenAI API key from environment or config
func GetOpenAIKey() string {
	// First check environment variable
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}

	// Then check config file
	return viper.GetString("openai.api_key")
}

// GetGeminiKey retrieves the Gemini API key from environment or config
func GetGeminiKey() string {
	for _, env := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}
	return viper.GetString("gemini.api_key")
}

// DefaultStateDir is $XDG_STATE_HOME/lingogate, falling back to
// ~/.local/state/lingogate
func DefaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "lingogate")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".lingogate")
	}
	return filepath.Join(home, ".local", "state", "lingogate")
}
