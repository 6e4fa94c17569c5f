package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/meshtree/internal/logger"
	"github.com/meshtree/internal/node"
	"github.com/meshtree/internal/sim"
	"github.com/meshtree/internal/sink"
	"github.com/meshtree/pkg/models"
)

func main() {
	topoPath := flag.String("topology", "", "topology file (YAML or JSON); empty runs the reference deployment")
	duration := flag.Duration("duration", 60*time.Second, "simulated run time")
	step := flag.Duration("step", 10*time.Second, "interval between tree checks")
	probability := flag.Float64("sample_probability", node.DefaultSampleProbability, "per-slot sampling probability")
	samples := flag.Bool("samples", true, "print samples delivered to the border router")
	logLevel := flag.String("log_level", "warn", "log level")
	flag.Parse()

	if err := logger.Init("", *logLevel); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Logger.Sync()

	topo := sim.Reference()
	if *topoPath != "" {
		var err error
		if topo, err = sim.LoadTopology(*topoPath); err != nil {
			logger.Logger.Fatal("Failed to load topology", zap.Error(err))
		}
	}

	opts := []sim.Option{sim.WithLogger(logger.Named("sim"))}
	if *samples {
		opts = append(opts, sim.WithSampleSink(sink.NewLine(os.Stdout)))
	}
	net, err := sim.Build(topo, func(c *node.Config) {
		c.SampleProbability = *probability
	}, opts...)
	if err != nil {
		logger.Logger.Fatal("Invalid topology", zap.Error(err))
	}

	end := duration.Milliseconds()
	inc := step.Milliseconds()
	if inc <= 0 {
		inc = end
	}
	failed := false
	for net.Now() < end {
		d := inc
		if rest := end - net.Now(); rest < d {
			d = rest
		}
		net.RunFor(d)
		if err := sim.CheckAcyclic(net.Snapshots()); err != nil {
			logger.Logger.Error("Tree check failed", zap.Int64("at", net.Now()), zap.Error(err))
			failed = true
		}
	}

	snaps := net.Snapshots()
	printSnapshots(snaps)
	if err := errors.Join(sim.CheckRanks(snaps), sim.CheckChildren(snaps)); err != nil {
		fmt.Println("checks:", err)
		failed = true
	}
	if failed {
		os.Exit(1)
	}
}

func printSnapshots(snaps []models.Snapshot) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROLE\tRANK\tPARENT\tCHILDREN\tCOMP\tSLOT")
	for _, s := range snaps {
		rank, parent, slot := "-", "-", "-"
		if s.Rank != nil {
			rank = fmt.Sprint(*s.Rank)
		}
		if s.Parent != nil {
			parent = s.Parent.String()
		}
		if s.PendingSlot != nil {
			slot = fmt.Sprintf("[%d,%d)", s.PendingSlot.Start, s.PendingSlot.End)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%v\t%d\t%s\n",
			s.ID, s.Role, rank, parent, s.ChildAddresses(), s.ClockCompensation, slot)
	}
	w.Flush()
}
