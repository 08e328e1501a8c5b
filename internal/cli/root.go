package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/riposte/internal/config"
	"github.com/wesleyorama2/riposte/internal/cookies"
	"github.com/wesleyorama2/riposte/internal/http"
	"github.com/wesleyorama2/riposte/internal/logging"
	"github.com/wesleyorama2/riposte/internal/output"
)

var version = "0.1.0"

// errReported is returned by commands that already rendered their failure.
var errReported = errors.New("failure already reported")

// app carries state shared by every command of one invocation.
type app struct {
	dataDir      string
	envFile      string
	logLevel     string
	logFormat    string
	outputFormat string
	noColor      bool

	settings *config.Settings
	logger   zerolog.Logger
	format   output.OutputFormat
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:     "riposte",
		Short:   "An instrumented terminal HTTP client",
		Version: version,
		Long: `Riposte sends HTTP/1.1 requests and reports exactly where the time went:
DNS lookup, TCP connect, TLS handshake, request send, server processing and
content transfer. Cookies are kept in a persistent jar between invocations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.dataDir, "data-dir", "", "Directory holding config.yaml and the cookie jar (env RIPOSTE_DATA_DIR)")
	flags.StringVar(&a.envFile, "env-file", ".env", "Dotenv file with RIPOSTE_* settings")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error, off")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: text or json")
	flags.StringVarP(&a.outputFormat, "output", "o", "text", "Output format: text, json or yaml")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(newRequestCmd(a))
	for _, method := range methodCommands {
		root.AddCommand(newMethodCmd(a, method))
	}
	root.AddCommand(newCookiesCmd(a))
	root.AddCommand(newVersionCmd())

	return root
}

// setup resolves settings and the logger once flags are parsed.
func (a *app) setup(cmd *cobra.Command) error {
	settings, err := config.LoadSettings(config.LoadOptions{
		DataDir: a.dataDir,
		EnvFile: a.envFile,
	})
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		settings.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		settings.LogFormat = a.logFormat
	}
	a.settings = settings

	a.format, err = output.ParseFormat(a.outputFormat)
	if err != nil {
		return err
	}

	if !output.IsTerminal(cmd.OutOrStdout()) {
		a.noColor = true
	}

	a.logger = logging.New(logging.Config{
		Level:   logging.ParseLevel(settings.LogLevel),
		Format:  logging.ParseFormat(settings.LogFormat),
		Output:  cmd.ErrOrStderr(),
		NoColor: !output.IsTerminal(cmd.ErrOrStderr()),
	})
	a.logger.Debug().Str("dataDir", settings.DataDir).Str("logLevel", settings.LogLevel).Msg("settings loaded")
	return nil
}

func (a *app) store() *cookies.Store {
	return cookies.NewStore(a.settings.CookiePath(), cookies.WithLogger(a.logger))
}

func (a *app) engine(jar http.CookieJar, observers ...http.Observer) *http.Engine {
	opts := []http.Option{http.WithLogger(a.logger)}
	for _, o := range observers {
		opts = append(opts, http.WithObserver(o))
	}
	return http.NewEngine(jar, opts...)
}

func (a *app) formatter(verbose bool) output.FormatProvider {
	return output.GetFormatter(a.format, verbose, a.noColor)
}

// fail renders err and marks it as reported. Structured formats keep errors
// on stdout next to results; text errors go to stderr.
func (a *app) fail(cmd *cobra.Command, err error) error {
	w := cmd.ErrOrStderr()
	if a.format != output.FormatText {
		w = cmd.OutOrStdout()
	}
	fmt.Fprint(w, a.formatter(false).FormatError(err))
	return errReported
}

// Execute runs the command tree with the process arguments.
func Execute() error {
	return execute(NewRootCmd(), os.Args[1:], os.Stdout, os.Stderr)
}

func execute(root *cobra.Command, args []string, stdout, stderr io.Writer) error {
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "riposte version %s\n", version)
		},
	}
}
