package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/riposte/internal/config"
	"github.com/wesleyorama2/riposte/internal/http"
	"github.com/wesleyorama2/riposte/internal/metrics"
	"github.com/wesleyorama2/riposte/internal/output"
	"github.com/wesleyorama2/riposte/internal/pacing"
	"github.com/wesleyorama2/riposte/internal/summary"
)

// executionOptions are the flags shared by every command that sends requests.
type executionOptions struct {
	verbose     bool
	repeat      int
	rate        float64
	extract     string
	metricsFile string
	connect     time.Duration
	write       time.Duration
	read        time.Duration
}

func addExecutionFlags(cmd *cobra.Command, opts *executionOptions) {
	flags := cmd.Flags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Show connection details, phase timings and response headers")
	flags.IntVarP(&opts.repeat, "repeat", "n", 1, "Send the request N times and print per-phase percentiles")
	flags.Float64Var(&opts.rate, "rate", 0, "Maximum repeated requests per second (0 means back to back)")
	flags.StringVarP(&opts.extract, "extract", "e", "", "Print only the value at this JSONPath in the response body")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	flags.DurationVar(&opts.connect, "connect-timeout", 0, "Connect budget, TLS handshake included")
	flags.DurationVar(&opts.write, "write-timeout", 0, "Budget for each write to the connection")
	flags.DurationVar(&opts.read, "read-timeout", 0, "Budget for each read from the connection")
}

func newRequestCmd(a *app) *cobra.Command {
	var (
		opts executionOptions
		file string
		vars map[string]string
	)

	cmd := &cobra.Command{
		Use:   "request -f FILE",
		Short: "Send the request described by a YAML or JSON file",
		Long: `Send the request described by a YAML or JSON descriptor file.

The file holds api, method, uri, contentType, body, query and headers
(lists of {key, value, enabled}), timeout {connect, write, read} and
variables. {{name}} placeholders are replaced from variables, which --var
overrides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := config.LoadRequest(file, vars)
			if err != nil {
				return err
			}
			return a.run(cmd, req.API, req.Descriptor, opts)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Request descriptor file")
	cmd.Flags().StringToStringVar(&vars, "var", nil, "Template variable (name=value, repeatable)")
	_ = cmd.MarkFlagRequired("file")
	addExecutionFlags(cmd, &opts)
	return cmd
}

// run executes d opts.repeat times and renders the outcome.
func (a *app) run(cmd *cobra.Command, api string, d http.Descriptor, opts executionOptions) error {
	if opts.repeat < 1 {
		return fmt.Errorf("--repeat must be at least 1")
	}

	defaults, err := a.settings.Timeouts()
	if err != nil {
		return err
	}
	budget := http.Timeout{Connect: opts.connect, Write: opts.write, Read: opts.read}.Or(d.Timeout).Or(defaults)

	recorder := metrics.New()
	observers := []http.Observer{recorder}
	var sum *summary.Summary
	if opts.repeat > 1 {
		sum = summary.New()
		observers = append(observers, sum)
	}
	engine := a.engine(a.store(), observers...)
	defer a.writeMetrics(recorder, opts.metricsFile)

	out := cmd.OutOrStdout()
	f := a.formatter(opts.verbose)

	if a.format == output.FormatText && opts.extract == "" {
		if u, err := http.ResolveURL(d); err == nil {
			fmt.Fprint(out, f.FormatRequest(http.NormalizeMethod(d.Method), u, d))
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if opts.repeat == 1 {
		result, err := engine.Execute(ctx, api, d, budget)
		if err != nil {
			return a.fail(cmd, err)
		}
		return a.render(out, f, result, opts.extract)
	}

	pacer := pacing.New(opts.rate)
	for i := 0; i < opts.repeat; i++ {
		if err := pacer.Wait(ctx); err != nil {
			break
		}
		result, err := engine.Execute(ctx, api, d, budget)
		if err != nil {
			a.logger.Warn().Err(err).Int("run", i+1).Msg("request failed")
			continue
		}
		if opts.verbose && a.format == output.FormatText {
			fmt.Fprintf(out, "  #%d %d %dms\n", i+1, result.Status, result.Latency)
		}
	}

	if starts, waited := pacer.Stats(); starts > 0 {
		a.logger.Debug().Int64("runs", starts).Dur("paced", waited).Msg("pacing finished")
	}

	report := sum.Report()
	fmt.Fprint(out, f.FormatSummary(report))
	if report.Failures == report.Runs {
		return errReported
	}
	return nil
}

func (a *app) render(out io.Writer, f output.FormatProvider, result *http.Result, extract string) error {
	if extract == "" {
		fmt.Fprint(out, f.FormatResult(result))
		return nil
	}

	value, err := output.Extract(result, extract)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, value)
	return nil
}

func (a *app) writeMetrics(recorder *metrics.Recorder, path string) {
	if path == "" {
		path = a.settings.MetricsFile
	}
	if path == "" {
		return
	}
	if err := recorder.WriteTextfile(path); err != nil {
		a.logger.Warn().Err(err).Str("path", path).Msg("metrics not written")
		return
	}
	a.logger.Debug().Str("path", path).Msg("metrics written")
}
