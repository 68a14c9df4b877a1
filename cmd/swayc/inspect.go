package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"swayc/internal/finalize"
	"swayc/internal/ir"
	"swayc/internal/irgen"
	"swayc/internal/layout"
	"swayc/internal/opt"
	"swayc/internal/project"
	"swayc/internal/types"
)

func newIRCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ir [flags] [file]",
		Short: "Print or run the IR of a program",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIR,
	}
	cmd.Flags().Bool("opt", false, "optimise before printing")
	cmd.Flags().StringSlice("passes", nil, "passes run by --opt ("+strings.Join(project.KnownPasses, ", ")+")")
	cmd.Flags().Bool("verify-strict", false, "type-check every IR operand")
	cmd.Flags().String("run", "", "interpret this function instead of printing")
	cmd.Flags().StringArray("arg", nil, "argument words for --run, comma separated; repeat per parameter")
	return cmd
}

func runIR(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	in, err := loadInput(args)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	optimise, _ := flags.GetBool("opt")
	strict, _ := flags.GetBool("verify-strict")
	runName, _ := flags.GetString("run")
	rawArgs, _ := flags.GetStringArray("arg")

	res := irgen.Build(in.prog)
	if err := s.report(in.prog.Files, res.Warnings, res.Errors); err != nil {
		return err
	}
	if !res.Succeeded() {
		return fmt.Errorf("%s: IR generation failed with %d error(s)", in.path, len(res.Errors))
	}
	mod := res.Value

	if optimise {
		passes := opt.DefaultPasses()
		if in.manifest != nil && in.manifest.Config.Build.Passes != nil {
			passes = in.manifest.Config.Build.Passes
		}
		if flags.Changed("passes") {
			passes, _ = flags.GetStringSlice("passes")
		}
		mgr := opt.NewManager()
		if err := mgr.Run(s.ctx, mod, passes); err != nil {
			return err
		}
		for _, st := range mgr.Stats() {
			if st.Changed {
				s.log.Debug("pass changed function", "pass", st.Pass, "func", st.Func)
			}
		}
	}
	if err := ir.Verify(mod, ir.VerifyOptions{Strict: strict}); err != nil {
		return fmt.Errorf("IR verification failed:\n%w", err)
	}

	if runName == "" {
		return ir.Print(s.out, mod)
	}
	words := make([][]uint64, 0, len(rawArgs))
	for _, a := range rawArgs {
		w, err := parseWords(a)
		if err != nil {
			return err
		}
		words = append(words, w)
	}
	it := ir.NewInterpreter(mod)
	out, err := it.Run(runName, words...)
	if err != nil {
		var rev *ir.RevertError
		if errors.As(err, &rev) {
			fmt.Fprintf(s.out, "%s reverted: %v\n", runName, rev)
			return nil
		}
		return err
	}
	for _, l := range it.Logs {
		fmt.Fprintf(s.out, "log %s\n", formatWords(l))
	}
	fmt.Fprintf(s.out, "%s = %s\n", runName, formatWords(out))
	return nil
}

func parseWords(s string) ([]uint64, error) {
	var out []uint64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		w, err := strconv.ParseUint(f, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid argument word %q", f)
		}
		out = append(out, w)
	}
	return out, nil
}

func formatWords(ws []uint64) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = strconv.FormatUint(w, 10)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func newAsmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asm [flags] [file]",
		Short: "Print the assembly of a program",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAsm,
	}
	addCompileFlags(cmd)
	cmd.Flags().Bool("listing", false, "print the finalised listing with encoded words")
	return cmd
}

func runAsm(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	in, err := loadInput(args)
	if err != nil {
		return err
	}
	opts, err := compileOptions(cmd, in.manifest)
	if err != nil {
		return err
	}
	art, err := s.compile(in, opts, nil)
	if err != nil {
		return err
	}
	if listing, _ := cmd.Flags().GetBool("listing"); listing {
		_, err = fmt.Fprint(s.out, art.Listing)
		return err
	}
	_, err = fmt.Fprint(s.out, art.AsmText)
	return err
}

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file.bin>",
		Short: "Decode bytecode back to instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// #nosec G304 -- path comes from the command line
			code, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			instrs, err := finalize.Disassemble(code[:len(code)/finalize.InstrBytes*finalize.InstrBytes])
			for i, in := range instrs {
				fmt.Fprintf(out, "%06x  %s\n", i*finalize.InstrBytes, in)
			}
			if err != nil {
				// the data section follows the last instruction
				fmt.Fprintf(out, "; %v\n", err)
			}
			return nil
		},
	}
}

func newLayoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout <file> <type>...",
		Short: "Print the memory layout of types",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runLayout,
	}
}

func runLayout(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	in, err := loadInput(args[:1])
	if err != nil {
		return err
	}
	tin := in.prog.Types
	names := make(map[string]types.TypeID, tin.Len())
	for i := 1; i < tin.Len(); i++ {
		id := safecast.MustConv[types.TypeID](i)
		names[tin.String(id)] = id
	}
	lay := layout.New(tin)
	for _, name := range args[1:] {
		id, ok := names[name]
		if !ok {
			known := make([]string, 0, len(names))
			for n := range names {
				known = append(known, n)
			}
			slices.Sort(known)
			return fmt.Errorf("unknown type %q (known: %s)", name, strings.Join(known, ", "))
		}
		l, err := lay.LayoutOf(id)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		printLayout(s, tin, name, l)
	}
	return nil
}

func printLayout(s *session, tin *types.Interner, name string, l layout.TypeLayout) {
	fmt.Fprintf(s.out, "%s: %d words (%d bytes)\n", name, l.SizeWords, l.SizeBytes())
	if l.TagWords > 0 {
		fmt.Fprintf(s.out, "  tag  +0  %d\n", l.TagWords)
	}
	if l.Len > 0 {
		fmt.Fprintf(s.out, "  %d x %d words\n", l.Len, l.ElemWords)
	}
	nameWidth, typeWidth := 0, 0
	for _, f := range l.Fields {
		nameWidth = max(nameWidth, runewidth.StringWidth(f.Name))
		typeWidth = max(typeWidth, runewidth.StringWidth(tin.String(f.Type)))
	}
	for _, f := range l.Fields {
		fmt.Fprintf(s.out, "  %s  %s  +%d  %d\n",
			runewidth.FillRight(f.Name, nameWidth),
			runewidth.FillRight(tin.String(f.Type), typeWidth),
			f.OffsetWords, f.SizeWords)
	}
}
