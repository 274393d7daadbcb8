// Command teakrun loads a raw 16-bit Teak program word stream and drives
// the core interpreter against it, in the teacher's flag-based CLI
// style (cmd/m2sim/main.go), with ELF loading and the -timing scheduler
// branch dropped: this core has no bus-timing model to select between.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/teakcore/core"
	"github.com/sarchlab/teakcore/mif"
)

var (
	cycles  = flag.Int("cycles", 1000, "number of instruction cycles to run")
	dataKW  = flag.Int("data-kwords", 32, "data memory size, in 16-bit words (x1024)")
	verbose = flag.Bool("v", false, "verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: teakrun [options] <program.bin>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	programPath := flag.Arg(0)
	words, err := loadWords(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s (%d words)\n", programPath, len(words))
	}

	mem := mif.NewMemory(*dataKW*1024, len(words))
	mem.LoadProgram(words)

	c := core.New(core.WithMemoryInterface(mem))

	if err := c.Run(*cycles); err != nil {
		fmt.Fprintf(os.Stderr, "teakrun: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("pc=0x%05x a0=0x%010x a1=0x%010x b0=0x%010x b1=0x%010x\n",
			c.Regs.PC, uint64(c.Regs.A0)&0xFFFFFFFFFF, uint64(c.Regs.A1)&0xFFFFFFFFFF,
			uint64(c.Regs.B0)&0xFFFFFFFFFF, uint64(c.Regs.B1)&0xFFFFFFFFFF)
	}
}

// loadWords reads a flat binary file of little-endian 16-bit words.
func loadWords(path string) ([]uint16, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	words := make([]uint16, len(raw)/2)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	return words, nil
}
