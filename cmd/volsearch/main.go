// Command volsearch indexes local volumes and searches them by file name.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	internal "github.com/ZanzyTHEbar/volsearch/volsearch"
	"github.com/ZanzyTHEbar/volsearch/volsearch/config"
	"github.com/ZanzyTHEbar/volsearch/volsearch/escalation"
	"github.com/ZanzyTHEbar/volsearch/volsearch/filesystem/common"
	"github.com/ZanzyTHEbar/volsearch/volsearch/ports"
	"github.com/ZanzyTHEbar/volsearch/volsearch/search"
	"github.com/ZanzyTHEbar/volsearch/volsearch/service"
	"github.com/ZanzyTHEbar/volsearch/volsearch/usn"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	flagConfig    string
	flagFilesOnly bool
	flagDirsOnly  bool
	flagExt       []string
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:          internal.DefaultAppName + " [query...]",
		Short:        "Index local volumes and search them by file name",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flagFilesOnly && flagDirsOnly {
				return errors.New("--files-only and --dirs-only are mutually exclusive")
			}
			return run(cmd, v, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flagConfig, "config", "", "config file (default searches ., ~/.config/volsearch, /etc/volsearch)")
	f.Bool("skip-elevation", false, "never prompt for elevation; fall back to directory scans")
	f.StringSlice("volume", nil, "volume to bulk-enumerate, e.g. C: (repeatable; default all fixed volumes)")
	f.StringSlice("root", nil, "directory to index by traversal (repeatable)")
	f.Int("limit", internal.DefaultMaxResults, "maximum hits per query (0 for unlimited)")
	f.String("log-level", "info", "log level")
	f.BoolVar(&flagFilesOnly, "files-only", false, "only match files")
	f.BoolVar(&flagDirsOnly, "dirs-only", false, "only match folders")
	f.StringSliceVar(&flagExt, "ext", nil, "only match these extensions (repeatable)")

	for key, name := range map[string]string{
		"index.skipElevation": "skip-elevation",
		"index.volumes":       "volume",
		"index.roots":         "root",
		"search.maxResults":   "limit",
		"log.level":           "log-level",
	} {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func run(cmd *cobra.Command, v *viper.Viper, args []string) error {
	cfg, err := config.Load(v, flagConfig)
	if err != nil {
		return err
	}

	logger, closer, err := internal.NewLogger(cfg.Log.Logger())
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	stdin := bufio.NewReader(cmd.InOrStdin())
	stderr := cmd.ErrOrStderr()
	ui := newConsole(stderr)

	opts := service.OptionsFromConfig(cfg)
	if elevated, err := escalation.IsElevated(); err == nil {
		opts.Escalation.AlreadyElevated = elevated
	}
	svc := service.New(opts, usn.System{}, terminalPrompter{in: stdin, out: stderr},
		escalation.ShellRestarter{Args: os.Args[1:]}, logger)

	ui.StartProgress("Indexing")
	sess, report, err := svc.Build(ctx)
	if err != nil {
		ui.StopProgress(false, err.Error())
		printReport(stderr, report)
		return err
	}
	ui.StopProgress(true, fmt.Sprintf("%d records", report.Records()))
	printReport(stderr, report)
	logger.Debug().Interface("metrics", svc.Metrics()).Msg("Build metrics")

	if report.RestartRequested {
		ui.Output("Continuing in the elevated instance.")
		return nil
	}
	if len(sess.Volumes()) == 0 {
		ui.Warning("nothing was indexed")
	}

	qopts := opts.Search
	qopts.Extensions = flagExt
	switch {
	case flagFilesOnly:
		qopts.Kind = search.KindFiles
	case flagDirsOnly:
		qopts.Kind = search.KindFolders
	}

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		return query(ctx, out, ui, sess, strings.Join(args, " "), qopts)
	}

	for {
		fmt.Fprint(stderr, "> ")
		line, err := stdin.ReadString('\n')
		if text := strings.TrimSpace(line); text != "" {
			if qerr := query(ctx, out, ui, sess, text, qopts); qerr != nil {
				if ctx.Err() != nil {
					return qerr
				}
				ui.Error("query failed", qerr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func query(ctx context.Context, w io.Writer, ui ports.Interactor, sess *service.Session, text string, opts search.Options) error {
	start := time.Now()
	hits, err := sess.SearchWith(ctx, text, opts)
	if err != nil {
		return err
	}
	for _, h := range hits {
		res, err := sess.ResolvePath(h.Volume, h.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, res.Path)
	}
	ui.Output(fmt.Sprintf("%d hits in %s", len(hits), common.FormatDuration(time.Since(start))))
	return nil
}

// printReport writes one line per volume.
func printReport(w io.Writer, r service.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VOLUME\tSTATUS\tSOURCE\tRECORDS\tMALFORMED\tTIME\tREASON")
	for _, v := range r.Volumes {
		reason := ""
		if v.Err != nil {
			reason = v.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			v.Volume, v.Status, v.Source, v.Records, v.Malformed, common.FormatDuration(v.Duration), reason)
	}
	tw.Flush()
	fmt.Fprintf(w, "run %s: %d records in %s\n", r.RunID, r.Records(), common.FormatDuration(r.Duration))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
