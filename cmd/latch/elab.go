package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"latch/internal/design"
	"latch/internal/diagfmt"
	"latch/internal/driver"
	"latch/internal/elab"
)

var elabCmd = &cobra.Command{
	Use:   "elab [flags] <design.toml>",
	Short: "Elaborate a design description",
	Long:  `Resolve parameter environments and port mappings for every instantiation reachable from the design's top modules`,
	Args:  cobra.ExactArgs(1),
	RunE:  runElab,
}

func init() {
	elabCmd.Flags().Int("jobs", 0, "max parallel workers (0=auto)")
	elabCmd.Flags().Int("max-depth", 64, "max instantiation nesting depth")
	elabCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	elabCmd.Flags().Bool("disk-cache", false, "persist elaborated environments to the disk cache (experimental)")
	elabCmd.Flags().Bool("dump-envs", false, "dump every interned environment, not only per-site results")
}

func runElab(cmd *cobra.Command, args []string) error {
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	maxDepth, err := cmd.Flags().GetInt("max-depth")
	if err != nil {
		return fmt.Errorf("failed to get max-depth flag: %w", err)
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	useDiskCache, err := cmd.Flags().GetBool("disk-cache")
	if err != nil {
		return fmt.Errorf("failed to get disk-cache flag: %w", err)
	}
	dumpEnvs, err := cmd.Flags().GetBool("dump-envs")
	if err != nil {
		return fmt.Errorf("failed to get dump-envs flag: %w", err)
	}
	maxDiags, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	d, err := design.Load(args[0])
	if err != nil || d.Bag.HasErrors() {
		if d != nil {
			d.Bag.Sort()
			diagfmt.Pretty(os.Stderr, d.Bag, d.FileSet, diagfmt.PrettyOpts{
				Color:     useColor(cmd),
				ShowNotes: withNotes,
			})
		}
		if err != nil {
			return err
		}
		os.Exit(1)
	}

	result, err := driver.Elaborate(context.Background(), d.Registry, d.Roots, driver.Options{
		Jobs:           jobs,
		MaxDepth:       maxDepth,
		MaxDiagnostics: maxDiags,
	})
	if err != nil {
		return err
	}

	if useDiskCache {
		if cache, cerr := driver.OpenDiskCache("latch"); cerr == nil {
			if perr := cache.Put(d.Registry.Digest(), driver.SnapshotEnvs(result.Session)); perr != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to write env cache: %v\n", perr)
			}
		}
	}

	dumpSites(result)
	if dumpEnvs {
		dumpEnvTable(result.Session)
	}

	diagfmt.Pretty(os.Stderr, result.Bag, d.FileSet, diagfmt.PrettyOpts{
		Color:     useColor(cmd),
		ShowNotes: withNotes,
	})
	if result.Bag.HasErrors() {
		os.Exit(1)
	}
	return nil
}

func dumpSites(result *driver.Result) {
	sess := result.Session
	for _, site := range result.Sites {
		if site.Failed {
			fmt.Printf("%s @ %s: FAILED\n", sess.Describe(site.Inst), site.Outer)
			continue
		}
		fmt.Printf("%s of %s @ %s -> %s\n",
			sess.Describe(site.Inst), sess.Describe(site.Target), site.Outer, site.Inner)

		if data, ok := sess.ParamEnvData(site.Inner); ok {
			for _, e := range data.Types() {
				fmt.Printf("  %s %s\n", sess.Describe(e.Param), e.Binding)
			}
			for _, e := range data.Values() {
				fmt.Printf("  %s %s\n", sess.Describe(e.Param), e.Binding)
			}
		}
		for _, pair := range site.Ports.Pairs() {
			fmt.Printf("  %s <- %s\n", sess.Describe(pair.Port.ID), pair.Conn)
		}
	}
}

func dumpEnvTable(sess *elab.Session) {
	envs := sess.Envs()
	for env := elab.DefaultEnv; int(env) < envs.Len(); env++ {
		data, ok := envs.Lookup(env)
		if !ok {
			break
		}
		fmt.Printf("%s:", env)
		if data.Module().IsValid() {
			fmt.Printf(" %s", sess.Describe(data.Module()))
		}
		fmt.Printf(" (%d values, %d types, %d interfaces)\n",
			len(data.Values()), len(data.Types()), len(data.Interfaces()))
	}
}
