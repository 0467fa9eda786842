package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/pkg/browser"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/sdramtester/clocking"
	"github.com/sarchlab/sdramtester/datarecording"
	"github.com/sarchlab/sdramtester/harness"
	"github.com/sarchlab/sdramtester/monitoring"
	"github.com/sarchlab/sdramtester/sim/timing"
)

type runOptions struct {
	seed             int64
	periodPS         uint64
	casLatency       int
	numPorts         int
	memorySize       uint64
	outstanding      int
	dataWidth        int
	transactions     uint64
	maxTimeUS        uint64
	samplingRatio    int
	postResetPeriods uint64
	warmUpPS         uint64
	busTimeout       uint64

	trace      bool
	eventLog   bool
	noSpeed    bool
	quiet      bool
	sqlite     string
	noRecord   bool
	clickhouse datarecording.ClickHouseConfig

	monitor     bool
	monitorPort int
	openMonitor bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Bring the controller up and run the memory tester.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOpts.run(cmd.ErrOrStderr())
	},
}

func init() {
	d := harness.DefaultConfig()
	f := runCmd.Flags()

	f.Int64Var(&runOpts.seed, "seed", d.Seed,
		"Seed of the random memory tester.")
	f.Uint64Var(&runOpts.periodPS, "period", d.Period.InPS(),
		"Base clock period in picoseconds.")
	f.IntVar(&runOpts.casLatency, "cl", d.CASLatency,
		"CAS latency programmed into MR0.")
	f.IntVar(&runOpts.numPorts, "ports", d.NumPorts,
		"Number of memory-request ports.")
	f.Uint64Var(&runOpts.memorySize, "memory-size", d.MemorySize,
		"Tested address space in bytes.")
	f.IntVar(&runOpts.outstanding, "outstanding", d.Outstanding,
		"In-flight requests per port.")
	f.IntVar(&runOpts.dataWidth, "data-width", d.DataWidth,
		"Width of a memory word in bits.")
	f.Uint64Var(&runOpts.transactions, "transactions", d.Transactions,
		"Requests to complete before the run ends.")
	f.Uint64Var(&runOpts.maxTimeUS, "max-time",
		uint64(d.MaxTime/timing.Microsecond),
		"Simulated time limit in microseconds.")
	f.IntVar(&runOpts.samplingRatio, "sampling-ratio", d.SamplingRatio,
		"Sampling clock cycles per base clock cycle.")
	f.Uint64Var(&runOpts.postResetPeriods, "post-reset-periods",
		d.PostResetPeriods,
		"Base periods between reset release and the first clock edge.")
	f.Uint64Var(&runOpts.warmUpPS, "warm-up", clocking.DefaultWarmUp.InPS(),
		"Reset hold time after power-up in picoseconds.")
	f.Uint64Var(&runOpts.busTimeout, "bus-timeout", d.BusTimeout,
		"Cycles the register bus waits for PREADY.")

	f.BoolVar(&runOpts.trace, "trace", false,
		"Print every register write, command and transaction.")
	f.BoolVar(&runOpts.eventLog, "event-log", false,
		"Print every simulation event.")
	f.BoolVar(&runOpts.noSpeed, "no-speed", false,
		"Do not report the simulation speed.")
	f.BoolVar(&runOpts.quiet, "quiet", false,
		"Only print the result.")

	f.StringVar(&runOpts.sqlite, "sqlite", "",
		"SQLite file to record into. A unique name is used if empty.")
	f.BoolVar(&runOpts.noRecord, "no-record", false,
		"Do not record the run.")
	f.StringVar(&runOpts.clickhouse.Addr, "clickhouse", "",
		"Record into the ClickHouse server at host:port instead of SQLite.")
	f.StringVar(&runOpts.clickhouse.Database, "clickhouse-db", "default",
		"ClickHouse database.")
	f.StringVar(&runOpts.clickhouse.Username, "clickhouse-user", "default",
		"ClickHouse user.")
	f.StringVar(&runOpts.clickhouse.Password, "clickhouse-password", "",
		"ClickHouse password.")

	f.BoolVar(&runOpts.monitor, "monitor", false,
		"Serve the monitoring web page while running.")
	f.IntVar(&runOpts.monitorPort, "monitor-port", 0,
		"Port of the monitoring server. A random port is used if 0.")
	f.BoolVar(&runOpts.openMonitor, "open-monitor", false,
		"Open the monitoring web page in a browser. Implies --monitor.")

	rootCmd.AddCommand(runCmd)
}

func (o runOptions) config() harness.Config {
	return harness.Config{
		Seed:             o.seed,
		Period:           timing.PS(o.periodPS),
		CASLatency:       o.casLatency,
		NumPorts:         o.numPorts,
		MemorySize:       o.memorySize,
		Outstanding:      o.outstanding,
		DataWidth:        o.dataWidth,
		Transactions:     o.transactions,
		MaxTime:          timing.VTime(o.maxTimeUS) * timing.Microsecond,
		SamplingRatio:    o.samplingRatio,
		PostResetPeriods: o.postResetPeriods,
		WarmUp:           timing.PS(o.warmUpPS),
		BusTimeout:       o.busTimeout,
	}
}

func (o runOptions) recorder(logger *log.Logger) (
	datarecording.DataRecorder, error,
) {
	if o.noRecord {
		return nil, nil
	}

	if o.clickhouse.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		return datarecording.NewClickHouseRecorder(ctx, o.clickhouse)
	}

	return datarecording.NewSQLiteRecorder(o.sqlite, logger)
}

func (o runOptions) builder(logger *log.Logger) harness.Builder {
	b := harness.MakeBuilder().
		WithConfig(o.config()).
		WithLogger(logger)

	if o.trace {
		b = b.WithBusLog()
	}

	if o.eventLog {
		b = b.WithEventLog()
	}

	if o.noSpeed {
		b = b.WithoutSpeedPrinter()
	}

	return b
}

func (o runOptions) run(out io.Writer) error {
	logger := log.New(out, "", 0)
	if o.quiet {
		logger = log.New(io.Discard, "", 0)
	}

	recorder, err := o.recorder(logger)
	if err != nil {
		return err
	}

	return o.runWith(out, logger, recorder)
}

// runWith runs one harness and closes the recorder, if any, before printing
// the summary, so a failed final flush fails the run.
func (o runOptions) runWith(
	out io.Writer,
	logger *log.Logger,
	recorder datarecording.DataRecorder,
) error {
	start := time.Now()

	h, err := o.simulate(logger, recorder)

	if recorder != nil {
		if closeErr := recorder.Close(); closeErr != nil && err == nil {
			err = errors.Wrap(closeErr, "close data recorder")
		}
	}

	if h != nil {
		printSummary(out, h, err, time.Since(start))
	}

	return err
}

func (o runOptions) simulate(
	logger *log.Logger,
	recorder datarecording.DataRecorder,
) (*harness.Harness, error) {
	b := o.builder(logger)

	if recorder != nil {
		b = b.WithDataRecorder(recorder)
	}

	if o.monitor || o.openMonitor {
		m := monitoring.NewMonitor().WithPortNumber(o.monitorPort)
		b = b.WithMonitor(m)

		url, err := m.StartServer()
		if err != nil {
			return nil, err
		}

		defer m.StopServer(context.Background())

		if o.openMonitor {
			if err := browser.OpenURL(url); err != nil {
				logger.Printf("cannot open browser: %v", err)
			}
		}
	}

	h, err := b.Build("SDRAMTester")
	if err != nil {
		return nil, err
	}

	return h, h.Run()
}

func printSummary(
	w io.Writer,
	h *harness.Harness,
	err error,
	wall time.Duration,
) {
	s := h.Status()

	result := "PASS"
	if err != nil {
		result = "FAIL: " + err.Error()
	}

	fmt.Fprintf(w, "run %s: %s\n", s.RunID, result)
	fmt.Fprintf(w, "  state            %s\n", s.State)
	fmt.Fprintf(w, "  simulated time   %d ps\n", s.NowPS)
	fmt.Fprintf(w, "  register writes  %d\n", s.NumWrites)
	fmt.Fprintf(w, "  transactions     %d/%d\n", s.Finished, s.Total)
	fmt.Fprintf(w, "  mismatches       %d\n", s.Mismatches)
	fmt.Fprintf(w, "  wall time        %s\n", wall.Round(time.Millisecond))
}
