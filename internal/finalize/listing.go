package finalize

import (
	"bufio"
	"fmt"
	"io"

	"fortio.org/safecast"
)

// Print writes a listing of b: byte offset, encoded word and instruction,
// with a header where each function starts.
func Print(w io.Writer, b *Binary) error {
	bw := bufio.NewWriter(w)
	starts := make(map[uint64]FuncInfo, len(b.Funcs))
	for _, f := range b.Funcs {
		starts[f.Start] = f
	}
	for i, in := range b.Instrs {
		idx, err := safecast.Conv[uint64](i)
		if err != nil {
			return err
		}
		if f, ok := starts[idx]; ok {
			fmt.Fprintf(bw, "; %s frame=%d spills=%d regs=%d\n", f.Name, f.FrameWords, f.Spills, f.Registers)
		}
		word := b.Code[i*InstrBytes : (i+1)*InstrBytes]
		fmt.Fprintf(bw, "%06x  %02x%02x%02x%02x  %s\n", idx*InstrBytes, word[0], word[1], word[2], word[3], in)
	}
	if len(b.Data) > 0 {
		fmt.Fprintf(bw, "; data %d bytes at %06x\n", len(b.Data), len(b.Code))
	}
	return bw.Flush()
}
