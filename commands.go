package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/anvil-platform/releaseplan/internal/artifact"
	"github.com/anvil-platform/releaseplan/internal/config"
	"github.com/anvil-platform/releaseplan/internal/graph"
	"github.com/anvil-platform/releaseplan/internal/registry"
	"github.com/anvil-platform/releaseplan/internal/release"
	"github.com/anvil-platform/releaseplan/internal/workspace"
)

const (
	exitFailure = 1
	// exitPartial means the plan was produced but some candidates failed.
	exitPartial = 2
	// exitConfiguration means the workspace metadata could not be read.
	exitConfiguration = 3
)

var errPartialPlan = errors.New("release plan has failed candidates")

type rootOptions struct {
	configPath   string
	envFile      string
	root         string
	scope        string
	metadataFile string
	metadataRoot string
	textfile     string
	output       string
	zapOpts      zap.Options

	// metricsPath is resolved once the configuration is loaded.
	metricsPath string
}

// app carries what every subcommand needs once flags and config are resolved.
type app struct {
	cfg *config.Config
	log logr.Logger
	out io.Writer
}

func newRootCommand() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{zapOpts: zap.Options{Development: true}}

	cmd := &cobra.Command{
		Use:           "releaseplan",
		Short:         "Plan package releases for a Cargo monorepo",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger := zap.New(zap.UseFlagOptions(&opts.zapOpts), zap.WriteTo(cmd.ErrOrStderr()))
			log.SetLogger(logger)
			cmd.SetContext(log.IntoContext(cmd.Context(), logger))
		},
	}
	bindRootFlags(cmd.PersistentFlags(), opts)

	cmd.AddCommand(
		newImpactCommand(opts),
		newPlanCommand(opts),
		newVersionsCommand(opts),
	)
	return cmd, opts
}

func bindRootFlags(fs *pflag.FlagSet, opts *rootOptions) {
	fs.StringVar(&opts.configPath, "config", "", "Path to a YAML config file.")
	fs.StringVar(&opts.envFile, "env-file", ".env", "Optional .env file loaded before environment overrides.")
	fs.StringVar(&opts.root, "root", "", "Workspace root. Overrides workspace.root.")
	fs.StringVar(&opts.scope, "scope", "", "Restrict the graph to packages under this directory.")
	fs.StringVar(&opts.metadataFile, "metadata-file", "", "Read a saved cargo metadata snapshot instead of running cargo.")
	fs.StringVar(&opts.metadataRoot, "metadata-root", "", "Rebase a snapshot recorded under another checkout path onto this root.")
	fs.StringVar(&opts.textfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit.")
	fs.StringVarP(&opts.output, "output", "o", "text", "Output format: text or json.")

	zfs := flag.NewFlagSet("zap", flag.ContinueOnError)
	opts.zapOpts.BindFlags(zfs)
	fs.AddGoFlagSet(zfs)
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	if opts.output != "text" && opts.output != "json" {
		return nil, fmt.Errorf("unsupported output format %q", opts.output)
	}

	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return nil, err
	}
	if opts.root != "" {
		cfg.Workspace.Root = opts.root
	}
	if opts.scope != "" {
		cfg.Workspace.Scope = opts.scope
	}
	if opts.metadataFile != "" {
		cfg.Workspace.MetadataFile = opts.metadataFile
	}
	if opts.metadataRoot != "" {
		cfg.Workspace.MetadataRoot = opts.metadataRoot
	}
	if opts.textfile != "" {
		cfg.Metrics.Textfile = opts.textfile
	}
	opts.metricsPath = cfg.Path(cfg.Metrics.Textfile)

	return &app{
		cfg: cfg,
		log: log.FromContext(cmd.Context()).WithValues("command", cmd.Name()),
		out: cmd.OutOrStdout(),
	}, nil
}

// graph builds the workspace graph. Unlike the library, the command line
// refuses to continue with an empty graph when metadata is unavailable.
func (a *app) graph(cmd *cobra.Command) (*graph.Graph, error) {
	g, err := graph.Build(cmd.Context(), a.cfg.MetadataSource(), a.cfg.Workspace.Scope)
	if err != nil {
		return nil, fmt.Errorf("build workspace graph: %w", err)
	}
	return g, nil
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newImpactCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "impact <package>",
		Short: "List every workspace package that transitively depends on a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			g, err := a.graph(cmd)
			if err != nil {
				return err
			}
			if _, err := g.Lookup(args[0]); err != nil {
				return err
			}

			var impacted []string
			for _, n := range g.ImpactedNodes(args[0]) {
				impacted = append(impacted, n.Name())
			}
			a.log.V(1).Info("computed impact set", "package", args[0], "size", len(impacted))

			if opts.output == "json" {
				if impacted == nil {
					impacted = []string{}
				}
				return a.writeJSON(struct {
					Package  string   `json:"package"`
					Impacted []string `json:"impacted"`
				}{args[0], impacted})
			}
			for _, name := range impacted {
				fmt.Fprintln(a.out, name)
			}
			return nil
		},
	}
}

func newPlanCommand(opts *rootOptions) *cobra.Command {
	var allowPartial bool

	cmd := &cobra.Command{
		Use:   "plan <package>...",
		Short: "Build release descriptors for changed packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			g, err := a.graph(cmd)
			if err != nil {
				return err
			}

			client, err := registry.NewClient(a.cfg.RegistryOptions())
			if err != nil {
				return err
			}
			source, err := a.cfg.ArtifactSource()
			if err != nil {
				return err
			}
			extractor := &artifact.Extractor{
				ScratchDir: a.cfg.Path(a.cfg.Artifacts.ScratchDir),
				Oracle:     client,
			}

			var planner release.Planner = release.NewDefault(source, extractor, a.cfg.Registry.Concurrency)
			plan, err := planner.Plan(cmd.Context(), release.Input{Candidates: args, Graph: g})
			if err != nil {
				return err
			}

			if opts.output == "json" {
				if err := a.writeJSON(plan); err != nil {
					return err
				}
			} else {
				printPlan(a.out, plan)
			}

			if perr := plan.Err(); perr != nil && !allowPartial {
				return fmt.Errorf("%w: %w", errPartialPlan, perr)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&allowPartial, "allow-partial", false, "Exit 0 even when some candidates failed.")
	return cmd
}

func printPlan(w io.Writer, plan release.Plan) {
	for _, e := range plan.Entries {
		switch {
		case e.Err != nil:
			fmt.Fprintf(w, "%s\terror\t%v\n", e.Candidate, e.Err)
		default:
			d := e.Descriptor
			fmt.Fprintf(w, "%s\t%s\t%s\tdeployable=%s\n", e.Candidate, d.Version, d.Tag, d.Deployable)
		}
		for _, name := range e.Impacted {
			fmt.Fprintf(w, "  impacts %s\n", name)
		}
	}
}

func newVersionsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <package>",
		Short: "Show the versions of a package published to the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			client, err := registry.NewClient(a.cfg.RegistryOptions())
			if err != nil {
				return err
			}

			res := client.ListPublishedVersions(cmd.Context(), args[0])
			if res.State == registry.StateUnknown {
				return fmt.Errorf("query registry for %s: %w", args[0], res.Err)
			}

			if opts.output == "json" {
				versions := res.Versions
				if versions == nil {
					versions = []string{}
				}
				return a.writeJSON(struct {
					Package  string   `json:"package"`
					State    string   `json:"state"`
					Versions []string `json:"versions"`
					Latest   string   `json:"latest,omitempty"`
				}{args[0], res.State.String(), versions, res.Latest()})
			}
			fmt.Fprintf(a.out, "%s\t%s\n", args[0], res.State)
			for _, v := range res.Versions {
				fmt.Fprintln(a.out, v)
			}
			return nil
		},
	}
}

func exitCode(err error) int {
	var cfgErr *workspace.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return exitConfiguration
	case errors.Is(err, errPartialPlan):
		return exitPartial
	default:
		return exitFailure
	}
}
