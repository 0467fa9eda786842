package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/sdramtester/ddrinit"
)

var scriptCASLatency int

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Print the register writes of the bring-up.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printScript(cmd.OutOrStdout(), scriptCASLatency)
	},
}

func init() {
	scriptCmd.Flags().IntVar(&scriptCASLatency, "cl", 2,
		"CAS latency programmed into MR0.")
	rootCmd.AddCommand(scriptCmd)
}

func printScript(w io.Writer, cl int) error {
	commands, err := ddrinit.Script(cl)
	if err != nil {
		return err
	}

	printSteps(w, ddrinit.ResetReleaseSteps())
	printSteps(w, ddrinit.ClockEnableSteps())

	for _, c := range commands {
		fmt.Fprintf(w, "# %s\n", c)
		printSteps(w, ddrinit.Expand(c))
	}

	fmt.Fprintf(w, "delay(%d)\n", ddrinit.CalibrationSettleCycles)

	return nil
}

func printSteps(w io.Writer, steps []ddrinit.Step) {
	for _, s := range steps {
		fmt.Fprintf(w, "write(0x%03x,0x%02x) %s\n",
			s.Address, s.Value, ddrinit.RegisterName(s.Address))

		if s.SettleCycles > 0 {
			fmt.Fprintf(w, "delay(%d)\n", s.SettleCycles)
		}
	}
}
