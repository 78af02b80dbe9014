package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/netsuke-build/netsuke"
)

var rootCmd *cobra.Command

func init() {
	var manifestPath string
	var ninjaFile string
	var accessible bool
	var verbose bool
	var allowHosts []string
	var allowSchemes []string
	var jobs int
	var tool string

	rootCmd = &cobra.Command{
		Use:   "netsuke",
		Short: "Compile a Netsuke manifest into a Ninja build file",
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := netsuke.NewNetworkPolicy()
			for _, s := range allowSchemes {
				policy = policy.AllowScheme(s)
			}
			if len(allowHosts) > 0 {
				policy = policy.AllowHosts(allowHosts...)
			}

			var reporter netsuke.Reporter
			switch {
			case accessible:
				reporter = netsuke.NewAccessibleReporter(os.Stderr)
			default:
				reporter = netsuke.NewTerminalReporter(os.Stderr)
			}
			if verbose {
				reporter = netsuke.NewTimedReporter(reporter, os.Stderr)
			}

			result, err := netsuke.Run(netsuke.Options{
				ManifestPath: manifestPath,
				NinjaFile:    ninjaFile,
				Targets:      args,
				Jobs:         jobs,
				Tool:         tool,
				Policy:       policy,
				Reporter:     reporter,
			})
			if err != nil {
				return err
			}

			if err := os.WriteFile(ninjaFile, []byte(result.Ninja), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", ninjaFile, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d actions, %d edges)\n",
				ninjaFile, len(result.Graph.Actions), len(result.Graph.Edges))
			fmt.Fprintf(cmd.OutOrStdout(), "run: %s %v (in %s)\n",
				result.Invocation.Program, result.Invocation.Args, result.Invocation.Dir)
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "netsuke.yaml", "path to the manifest")
	rootCmd.Flags().StringVarP(&ninjaFile, "output", "o", "build.ninja", "path to write the synthesised Ninja file")
	rootCmd.Flags().BoolVar(&accessible, "accessible", false, "use the plain-line progress reporter instead of the terminal one")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print a per-stage timing summary")
	rootCmd.Flags().StringArrayVar(&allowSchemes, "allow-scheme", nil, "URL scheme fetch() may use (repeatable)")
	rootCmd.Flags().StringArrayVar(&allowHosts, "allow-host", nil, "host fetch() may reach (repeatable)")
	rootCmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "parallelism to forward to the Ninja invocation (0 lets Ninja decide)")
	rootCmd.Flags().StringVarP(&tool, "tool", "t", "", "Ninja tool to forward instead of targets, e.g. \"clean\"")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "netsuke:", err)
		os.Exit(1)
	}
}
