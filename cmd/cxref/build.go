package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"cxref/internal/builder"
	"cxref/internal/config"
	"cxref/internal/discover"
	"cxref/internal/export/jsonexport"
	neo4jexport "cxref/internal/export/neo4j"
	"cxref/pkg/cgraph"
)

type buildFlags struct {
	jsonOut     string
	verbose     bool
	propagate   bool
	typedefDeps bool
	neo4jURI    string
	neo4jUser   string
	neo4jPass   string
	neo4jClean  bool
}

func newBuildCmd() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build [path]",
		Short: "Parse a C tree and build its cross-reference graph once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) == 1 {
				target = args[0]
			}
			logger := newLogger(flags.verbose)

			cfg, err := config.NewLoader(logger).Load(target)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyFlagOverrides(cfg, flags)

			g, removed, err := runBuild(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			fmt.Printf("build: %d nodes, %d pruned sinks\n", g.NodeCount(), len(removed))

			if flags.jsonOut != "" {
				if err := jsonexport.Save(flags.jsonOut, g, removed); err != nil {
					return fmt.Errorf("save json snapshot: %w", err)
				}
				fmt.Printf("wrote snapshot: %s\n", flags.jsonOut)
			}

			if flags.neo4jURI != "" {
				if err := exportToNeo4j(cmd.Context(), flags, g); err != nil {
					return fmt.Errorf("export to neo4j: %w", err)
				}
				fmt.Println("loaded graph into neo4j")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.jsonOut, "json-out", "", "write a JSON graph snapshot to this path")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "emit per-file progress and debug logging")
	cmd.Flags().BoolVar(&flags.propagate, "propagate", false, "propagate definition dependencies to their matching declaration")
	cmd.Flags().BoolVar(&flags.typedefDeps, "typedef-deps", false, "record direct dependencies on typedef names instead of collapsing to the underlying tag")
	cmd.Flags().StringVar(&flags.neo4jURI, "neo4j-uri", "", "Neo4j connection URI; when set the finished graph is loaded there too")
	cmd.Flags().StringVar(&flags.neo4jUser, "neo4j-user", "neo4j", "Neo4j username")
	cmd.Flags().StringVar(&flags.neo4jPass, "neo4j-password", "", "Neo4j password")
	cmd.Flags().BoolVar(&flags.neo4jClean, "neo4j-clean", false, "delete previously loaded cxref nodes before loading")
	return cmd
}

func applyFlagOverrides(cfg *config.Config, flags buildFlags) {
	cfg.Verbose = cfg.Verbose || flags.verbose
	cfg.PropagateDepsDefToDecl = cfg.PropagateDepsDefToDecl || flags.propagate
	cfg.TypedefsDependencies = cfg.TypedefsDependencies || flags.typedefDeps
}

// runBuild discovers candidate files under cfg.Root and runs one
// full build, opening the pfff.log diagnostics log for the duration.
func runBuild(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*cgraph.Graph, []cgraph.ID, error) {
	files, err := discover.Paths(cfg.Root, cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, nil, fmt.Errorf("discover files: %w", err)
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no files matched under %s", cfg.Root)
	}

	diagLog, closeLog, err := builder.OpenLog(cfg.Root)
	if err != nil {
		return nil, nil, err
	}
	defer closeLog()

	b := builder.New(cfg.Root, builder.Config{
		TypesDependencies:      cfg.TypesDependencies,
		FieldsDependencies:     cfg.FieldsDependencies,
		TypedefsDependencies:   cfg.TypedefsDependencies,
		PropagateDepsDefToDecl: cfg.PropagateDepsDefToDecl,
		Verbose:                cfg.Verbose,
	}, nil, diagLog)

	g, removed, err := b.Build(ctx, files)
	if err != nil {
		return nil, nil, fmt.Errorf("build graph: %w", err)
	}
	logger.Info("build complete", "files", len(files), "nodes", g.NodeCount(), "pruned", len(removed))
	return g, removed, nil
}

func exportToNeo4j(ctx context.Context, flags buildFlags, g *cgraph.Graph) error {
	loader, err := neo4jexport.New(ctx, flags.neo4jURI, flags.neo4jUser, flags.neo4jPass)
	if err != nil {
		return err
	}
	defer loader.Close(ctx)

	if flags.neo4jClean {
		if err := loader.Clean(ctx); err != nil {
			return fmt.Errorf("clean existing graph: %w", err)
		}
	}
	if err := loader.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return loader.Load(ctx, g)
}
