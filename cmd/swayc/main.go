// Command swayc compiles typed contract programs to VM bytecode.
package main

import (
	"os"

	"fortio.org/safecast"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"swayc/internal/version"
)

// newRootCmd assembles the command tree with its persistent flags.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "swayc",
		Short:         "Contract compiler backend for the register VM",
		Long:          `swayc lowers typed programs to IR, optimises them and emits VM bytecode`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newBuildCmd())
	root.AddCommand(newIRCmd())
	root.AddCommand(newAsmCmd())
	root.AddCommand(newDisasmCmd())
	root.AddCommand(newLayoutCmd())
	root.AddCommand(newCleanCmd())
	root.AddCommand(newVersionCmd())

	pf := root.PersistentFlags()
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("quiet", false, "suppress non-essential output")
	pf.Bool("timings", false, "show stage timings")
	pf.Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	pf.String("diagnostics-format", "pretty", "diagnostics output format (pretty|json)")
	pf.String("log-level", "warn", "log level (debug|info|warn|error)")
	pf.String("log-file", "", "also write JSON logs to this file")
	pf.String("trace", "", "trace output file (- for stderr)")
	pf.String("trace-level", "off", "trace level (off|stage|pass|debug)")
	pf.String("trace-mode", "stream", "trace storage mode (stream|ring|both)")
	pf.Int("trace-ring-size", 4096, "ring buffer size for trace-mode ring")
	pf.String("cpu-profile", "", "write a CPU profile to this file")
	pf.String("mem-profile", "", "write a heap profile to this file on exit")
	pf.String("runtime-trace", "", "write a Go runtime trace to this file")
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	fd, err := safecast.Conv[int](f.Fd())
	return err == nil && term.IsTerminal(fd)
}
