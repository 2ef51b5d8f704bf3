// Package cli provides the command-line interface for prctx.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cexll/prctx/internal/command"
	"github.com/cexll/prctx/internal/config"
	"github.com/cexll/prctx/internal/logging"
	"github.com/cexll/prctx/internal/prompt"
)

// ServiceFactory builds the command service once configuration is resolved.
type ServiceFactory func(cfg *config.Config, logger *slog.Logger) (*command.Service, error)

type rootOptions struct {
	format     string
	offsets    string
	separator  string
	header     bool
	logLevel   string
	envFiles   []string
	configPath string
}

// runtime is what a subcommand needs after flags and config are merged.
type runtime struct {
	logger  *slog.Logger
	service *command.Service
	format  prompt.Format
	offsets prompt.Offsets
}

// NewRootCommand creates the root command. One subcommand is generated per
// registered pull request command.
func NewRootCommand(newService ServiceFactory, version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "prctx",
		Short: "Turn GitHub pull requests into annotated context documents",
		Long: `prctx fetches a pull request and its review comments and assembles them
into one text document. Every description and comment is located by a labelled
byte range so it can be traced back to its source.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.format, "format", "f", string(prompt.FormatText), "Output format: text, json, yaml or sections")
	flags.StringVar(&opts.offsets, "offsets", string(prompt.OffsetsBytes), "Unit of section offsets: bytes or runes")
	flags.StringVar(&opts.separator, "separator", "", `Text placed between fragments (escapes such as \n are expanded)`)
	flags.BoolVar(&opts.header, "header", false, "Prepend a pull request metadata fragment")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringArrayVar(&opts.envFiles, "env-file", nil, "Extra dotenv file to read (repeatable)")
	flags.StringVar(&opts.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/prctx/config.toml)")

	// dir is where an optional .env is read from.
	setup := func(cmd *cobra.Command, dir string) (*runtime, error) {
		return opts.resolve(cmd, dir, newService)
	}

	// Metadata only; handlers run on the service built in setup.
	for _, c := range command.NewService(nil, nil, command.Options{}, nil).Registry().Commands() {
		root.AddCommand(newPullRequestCommand(c, setup))
	}
	root.AddCommand(newCompleteCommand(setup))
	root.AddCommand(newVersionCommand(version))
	return root
}

func (o *rootOptions) resolve(cmd *cobra.Command, dir string, newService ServiceFactory) (*runtime, error) {
	format, err := prompt.ParseFormat(o.format)
	if err != nil {
		return nil, err
	}
	offsets, err := prompt.ParseOffsets(o.offsets)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.Options{ConfigPath: o.configPath, EnvFiles: o.envFiles, Dir: dir})
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("separator") {
		cfg.Separator = config.Unescape(o.separator)
	}
	if flags.Changed("header") {
		cfg.IncludeHeader = o.header
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewLogger(cmd.ErrOrStderr(), logging.ParseLevel(cfg.LogLevel))
	svc, err := newService(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &runtime{logger: logger, service: svc, format: format, offsets: offsets}, nil
}

type setupFunc func(cmd *cobra.Command, dir string) (*runtime, error)

// envDir is the directory whose .env applies to an invocation: the checkout
// named by pr-current, else the working directory.
func envDir(name string, args []string) string {
	if name == command.NameCurrent && len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0]
	}
	return "."
}

func newPullRequestCommand(c command.Command, setup setupFunc) *cobra.Command {
	use := c.Name
	if c.ArgHint != "" {
		use += " " + c.ArgHint
	}
	args := cobra.ArbitraryArgs
	if c.ArgRequired {
		args = cobra.MinimumNArgs(1)
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: c.Description,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, envDir(c.Name, args))
			if err != nil {
				return err
			}
			// "pr-open acme lang 12" reads like "pr-open acme,lang,12"
			out, err := rt.service.Registry().Run(cmd.Context(), c.Name, strings.Join(args, ","))
			if err != nil {
				return err
			}
			rt.logger.Debug("writing document", "pr", out.Identity.String(), "format", rt.format)
			return writeDocument(cmd.OutOrStdout(), out.Document.In(rt.offsets), rt.format)
		},
	}

	if c.Complete != nil {
		cmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			rt, err := setup(cmd, ".")
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			got, err := rt.service.Registry().Complete(cmd.Context(), c.Name, strings.Join(append(append([]string(nil), args...), toComplete), ","))
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}
			out := make([]string, 0, len(got))
			for _, s := range got {
				out = append(out, s.Value+"\t"+s.Label)
			}
			return out, cobra.ShellCompDirectiveNoFileComp
		}
	}
	return cmd
}

func writeDocument(w io.Writer, doc prompt.Document, format prompt.Format) error {
	if err := prompt.Render(w, doc, format); err != nil {
		return err
	}
	if format == prompt.FormatText && !strings.HasSuffix(doc.Text, "\n") {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

func newCompleteCommand(setup setupFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <command> [argument]",
		Short: "List argument suggestions for a command, one value<TAB>label per line",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, ".")
			if err != nil {
				return err
			}
			arg := ""
			if len(args) == 2 {
				arg = args[1]
			}
			got, err := rt.service.Registry().Complete(cmd.Context(), args[0], arg)
			if err != nil {
				return err
			}
			for _, c := range got {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.Value, c.Label)
			}
			return nil
		},
	}
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "prctx %s\n", version)
		},
	}
}

// Execute runs the root command and reports errors on stderr. It returns the
// process exit code.
func Execute(root *cobra.Command) int {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}
