// Command ringdemo builds a consistent hashing ring and prints its virtual
// nodes or the owners of a set of keys.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/ringhash"
	"github.com/grafana/ringhash/hash"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand(os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

type ringFlags struct {
	nodes    []string
	replicas int
	hashName string
	logLevel string
	metrics  bool
}

func newRootCommand(logOutput io.Writer) *cobra.Command {
	var rf ringFlags

	cmd := &cobra.Command{
		Use:          "ringdemo",
		Short:        "Inspect a consistent hashing ring",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringSliceVar(&rf.nodes, "node", []string{"1", "2"}, "Node identifiers to add to the ring, in order")
	flags.IntVar(&rf.replicas, "replicas", ringhash.DefaultReplicas, "Number of virtual nodes per node")
	flags.StringVar(&rf.hashName, "hash", hash.NameMD5, "Hash function: md5 or xxhash")
	flags.StringVar(&rf.logLevel, "log.level", "info", "Log level: debug, info, warn, or error")
	flags.BoolVar(&rf.metrics, "metrics", false, "Print ring metrics after running")

	cmd.AddCommand(
		cmdVNodes(&rf, logOutput),
		cmdAssign(&rf, logOutput),
	)
	return cmd
}

func cmdVNodes(rf *ringFlags, logOutput io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "vnodes",
		Short: "Prints every virtual node in ring order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRing(cmd, rf, logOutput, func(r *ringhash.Ring) error {
				for _, vn := range r.VirtualNodes() {
					fmt.Fprintf(cmd.OutOrStdout(), "virtualNode: node=%s replica=%d hash=%s\n",
						vn.Node().Identifier(), vn.Replica(), vn.Hash())
				}
				return nil
			})
		},
	}
}

func cmdAssign(rf *ringFlags, logOutput io.Writer) *cobra.Command {
	var owners int

	cmd := &cobra.Command{
		Use:   "assign [key...]",
		Short: "Prints the owner of each key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRing(cmd, rf, logOutput, func(r *ringhash.Ring) error {
				for _, key := range args {
					nodes, err := r.Lookup(key, owners)
					if err != nil {
						return fmt.Errorf("failed to assign %q: %w", key, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s:", key)
					for _, n := range nodes {
						fmt.Fprintf(cmd.OutOrStdout(), " %s", n.Identifier())
					}
					fmt.Fprintln(cmd.OutOrStdout())
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&owners, "owners", 1, "Number of distinct owners to print per key")
	return cmd
}

// withRing builds a ring from rf, passes it to f, and prints metrics
// afterwards when requested.
func withRing(cmd *cobra.Command, rf *ringFlags, logOutput io.Writer, f func(r *ringhash.Ring) error) error {
	l, err := newLogger(logOutput, rf.logLevel)
	if err != nil {
		return err
	}

	hf, err := hash.ByName(rf.hashName)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	r, err := ringhash.NewRing(ringhash.Options{
		Replicas:   rf.replicas,
		Hash:       hf,
		Log:        l,
		Registerer: reg,
	})
	if err != nil {
		return err
	}
	defer r.Close()

	nodes := make([]*ringhash.Node, 0, len(rf.nodes))
	for _, id := range rf.nodes {
		n, err := ringhash.NewNode(id)
		if err != nil {
			return fmt.Errorf("invalid --node: %w", err)
		}
		nodes = append(nodes, n)
	}
	if err := r.AddNodes(nodes...); err != nil {
		return err
	}
	level.Info(l).Log("msg", "built ring", "nodes", r.NodeCount(), "vnodes", len(r.VirtualNodes()), "hash", r.HashName())

	if err := f(r); err != nil {
		return err
	}

	if rf.metrics {
		return writeMetrics(cmd.OutOrStdout(), reg)
	}
	return nil
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}

func newLogger(w io.Writer, lvl string) (log.Logger, error) {
	var opt level.Option
	switch lvl {
	case "debug":
		opt = level.AllowDebug()
	case "info":
		opt = level.AllowInfo()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		return nil, fmt.Errorf("unknown log level %q", lvl)
	}

	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	l = level.NewFilter(l, opt)
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	return l, nil
}
