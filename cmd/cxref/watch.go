package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cxref/internal/config"
	"cxref/internal/export/jsonexport"
	"cxref/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var bf buildFlags
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Rebuild the cross-reference graph on every source change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) == 1 {
				target = args[0]
			}
			logger := newLogger(bf.verbose)

			cfg, err := config.NewLoader(logger).Load(target)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyFlagOverrides(cfg, bf)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rebuild := func(reason string) {
				fmt.Printf("rebuilding (%s)...\n", reason)
				g, removed, err := runBuild(ctx, cfg, logger)
				if err != nil {
					fmt.Fprintf(os.Stderr, "rebuild error: %v\n", err)
					return
				}
				fmt.Printf("rebuilt: %d nodes, %d pruned sinks\n", g.NodeCount(), len(removed))
				if bf.jsonOut != "" {
					if err := jsonexport.Save(bf.jsonOut, g, removed); err != nil {
						fmt.Fprintf(os.Stderr, "snapshot write error: %v\n", err)
					}
				}
				if bf.neo4jURI != "" {
					if err := exportToNeo4j(ctx, bf, g); err != nil {
						fmt.Fprintf(os.Stderr, "neo4j export error: %v\n", err)
					}
				}
			}

			rebuild("initial")

			onChange := func(changed []string) {
				rebuild(fmt.Sprintf("%d file(s) changed", len(changed)))
			}
			if err := watch.Run(ctx, cfg.Root, debounce, onChange); err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			fmt.Println("watch: stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&bf.jsonOut, "json-out", "", "write a JSON graph snapshot after every rebuild")
	cmd.Flags().BoolVar(&bf.verbose, "verbose", false, "emit per-file progress and debug logging")
	cmd.Flags().BoolVar(&bf.propagate, "propagate", false, "propagate definition dependencies to their matching declaration")
	cmd.Flags().BoolVar(&bf.typedefDeps, "typedef-deps", false, "record direct dependencies on typedef names instead of collapsing to the underlying tag")
	cmd.Flags().StringVar(&bf.neo4jURI, "neo4j-uri", "", "Neo4j connection URI; when set every rebuild is also loaded there")
	cmd.Flags().StringVar(&bf.neo4jUser, "neo4j-user", "neo4j", "Neo4j username")
	cmd.Flags().StringVar(&bf.neo4jPass, "neo4j-password", "", "Neo4j password")
	cmd.Flags().BoolVar(&bf.neo4jClean, "neo4j-clean", false, "delete previously loaded cxref nodes before every load")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period after a change before rebuilding")
	return cmd
}
