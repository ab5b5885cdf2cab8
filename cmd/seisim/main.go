// Command seisim runs the cycle-accurate pipeline simulator: load a flat
// binary image, clock it to completion or step through it, and inspect the
// architectural register file and cache statistics along the way.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"seisim/asm"
	"seisim/config"
	"seisim/isa"
	"seisim/pipeline"
	"seisim/simlog"
)

var cfgPath string
var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "seisim",
		Short: "Cycle-accurate simulator for the register/control/integer instruction set",
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a JSON/YAML simulator configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	var maxClocks int
	runCmd := &cobra.Command{
		Use:   "run <image>",
		Short: "load an image and run it to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			simlog.SetVerbose(verbose)
			sim, cfg, err := newSimulator(args[0])
			if err != nil {
				return err
			}
			simlog.Config(configFields(cfg))

			clocked := 0
			for {
				status := sim.Clock()
				clocked++
				if status.IsDry() {
					break
				}
				if maxClocks > 0 && clocked >= maxClocks {
					return fmt.Errorf("seisim: exceeded max-clocks=%d without halting", maxClocks)
				}
			}
			printStats(sim)
			return nil
		},
	}
	runCmd.Flags().IntVar(&maxClocks, "max-clocks", 0, "abort if the pipeline has not halted after this many clocks (0 = unbounded)")

	var stepCount int
	stepCmd := &cobra.Command{
		Use:   "step <image>",
		Short: "load an image and single-step it, printing register state after each step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			simlog.SetVerbose(verbose)
			sim, _, err := newSimulator(args[0])
			if err != nil {
				return err
			}
			for i := 0; i < stepCount; i++ {
				status := sim.Step()
				printRegisters(sim)
				if status.IsDry() {
					fmt.Println("halted")
					break
				}
			}
			printStats(sim)
			return nil
		},
	}
	stepCmd.Flags().IntVar(&stepCount, "count", 1, "number of steps to execute")

	disasmCmd := &cobra.Command{
		Use:   "disasm <image>",
		Short: "decode a flat binary image word-by-word and print each instruction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return disassemble(args[0])
		},
	}

	var outPath string
	asmCmd := &cobra.Command{
		Use:   "asm <source> -o <image>",
		Short: "assemble a source file into a flat binary image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("seisim: reading source %s: %w", args[0], err)
			}
			image, err := asm.Assemble(string(src))
			if err != nil {
				return err
			}
			if outPath == "" {
				return fmt.Errorf("seisim: -o/--output is required")
			}
			return os.WriteFile(outPath, image, 0o644)
		},
	}
	asmCmd.Flags().StringVarP(&outPath, "output", "o", "", "path to write the assembled image")

	rootCmd.AddCommand(runCmd, stepCmd, disasmCmd, asmCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSimulator(imagePath string) (*pipeline.Simulator, config.Config, error) {
	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return nil, config.Config{}, err
		}
		cfg = loaded
	}

	image, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("seisim: reading image %s: %w", imagePath, err)
	}

	sim := pipeline.NewDefaultSimulator(
		cfg.PageCount,
		cfg.Data.SetBits,
		cfg.Data.OffsetBits,
		waysOf(cfg.Data),
		cfg.MissPenalty,
		cfg.VolatilePenalty,
		cfg.Writethrough,
	)
	sim.LoadImage(image)
	return sim, cfg, nil
}

func waysOf(c config.CacheConfig) int {
	if c.Mode == config.ModeDisabled {
		return 0
	}
	return c.Ways
}

func configFields(cfg config.Config) map[string]any {
	return map[string]any{
		"miss_penalty":     cfg.MissPenalty,
		"volatile_penalty": cfg.VolatilePenalty,
		"writethrough":     cfg.Writethrough,
		"page_count":       cfg.PageCount,
	}
}

func printRegisters(sim *pipeline.Simulator) {
	for r := isa.Register(0); r < isa.RegisterCount; r++ {
		fmt.Printf("%-4s= 0x%08x  ", isa.RegisterName(r), sim.Regs.Get(r))
		if r%4 == 3 {
			fmt.Println()
		}
	}
	fmt.Println()
}

func printStats(sim *pipeline.Simulator) {
	stats := sim.Stats()
	fmt.Printf("clocks=%d memory_accesses=%d cache_hits=%d cache_cold_misses=%d cache_conflict_misses=%d cache_evictions=%d\n",
		stats.Clocks, stats.MemoryAccesses, stats.CacheHits, stats.CacheColdMisses, stats.CacheConflictMisses, stats.CacheEvictions)
	printRegisters(sim)
}

func disassemble(imagePath string) error {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("seisim: reading image %s: %w", imagePath, err)
	}
	for off := 0; off+4 <= len(image); off += 4 {
		word := isa.Word(image[off])<<24 | isa.Word(image[off+1])<<16 | isa.Word(image[off+2])<<8 | isa.Word(image[off+3])
		instr, err := isa.Decode(word)
		if err != nil {
			fmt.Printf("%08x: %08x  ; decode error: %v\n", off, word, err)
			continue
		}
		fmt.Printf("%08x: %08x  %s\n", off, word, instr.String())
	}
	return nil
}
