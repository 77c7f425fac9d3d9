// Command goof2 is a thin conformance adapter over the vm package: it maps
// the CLI surface described in spec.md §6 onto a single vm.Execute call. It
// has no REPL, no raw-tty handling, and no file loading beyond os.ReadFile.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mkot2/goof2/rewrite"
	"github.com/mkot2/goof2/tape"
	"github.com/mkot2/goof2/vm"
)

func main() {
	var (
		inline    = flag.String("e", "", "inline source")
		srcPath   = flag.String("i", "", "source file `path`")
		dumpMem   = flag.Bool("dm", false, "dump memory after run")
		noOpt     = flag.Bool("nopt", false, "disable rewriter optimizations")
		dynamic   = flag.Bool("dts", false, "enable dynamic tape growth")
		eofPolicy = flag.Int("eof", 0, "EOF policy (0=unchanged, 1=zero, 2=cell-width max)")
		tapeSize  = flag.Int("ts", 0, "tape size in cells")
		cellWidth = flag.Int("cw", 8, "cell width in bits (8/16/32/64)")
		modelName = flag.String("mm", "auto", "memory model (auto/contiguous/fibonacci/paged/osbacked)")
		profile   = flag.Bool("profile", false, "emit profile summary to standard output")
		rulesPath = flag.String("rules", "", "rule table `file` (newline-delimited pattern<TAB>replacement)")
	)
	flag.Usage = usage
	flag.Parse()

	source, err := loadSource(*inline, *srcPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	width, err := parseWidth(*cellWidth)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	model, err := parseModel(*modelName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rules, err := loadRules(*rulesPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	var prof *vm.Profile
	if *profile {
		prof = &vm.Profile{}
	}

	inst, status, err := vm.Execute(vm.Config{
		Source:      source,
		Optimize:    !*noOpt,
		EOFPolicy:   vm.EOFPolicy(*eofPolicy),
		DynamicSize: *dynamic,
		CellWidth:   width,
		MemoryModel: model,
		TapeSize:    *tapeSize,
		Input:       bufio.NewReader(os.Stdin),
		Output:      out,
		RuleTable:   rules,
		Profile:     prof,
	})
	out.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v (status %v)\n", err, status)
		os.Exit(1)
	}

	if *dumpMem {
		if _, e := inst.Tape().Dump(os.Stdout); e != nil {
			fmt.Fprintln(os.Stderr, e)
			os.Exit(1)
		}
	}
	if prof != nil {
		fmt.Printf("instructions=%d wall_clock=%s peak_heap_bytes=%d loops=%d\n",
			prof.Instructions, prof.WallClock, prof.PeakHeapBytes, len(prof.LoopIterations))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: goof2 [-e source | -i path] [flags]")
	flag.PrintDefaults()
}

func loadSource(inline, path string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return "", fmt.Errorf("goof2: one of -e or -i is required")
}

func parseWidth(bits int) (tape.Width, error) {
	switch bits {
	case 8:
		return tape.Width8, nil
	case 16:
		return tape.Width16, nil
	case 32:
		return tape.Width32, nil
	case 64:
		return tape.Width64, nil
	default:
		return 0, fmt.Errorf("goof2: unsupported cell width %d", bits)
	}
}

func parseModel(name string) (tape.Model, error) {
	switch strings.ToLower(name) {
	case "auto", "":
		return tape.Auto, nil
	case "contiguous":
		return tape.Contiguous, nil
	case "fibonacci":
		return tape.Fibonacci, nil
	case "paged":
		return tape.Paged, nil
	case "osbacked":
		return tape.OSBacked, nil
	default:
		return 0, fmt.Errorf("goof2: unknown memory model %q", name)
	}
}

// loadRules parses a newline-delimited pattern<TAB>replacement file into a
// rewrite.RuleTable, the optional "ML optimizer" pre-pass hook of spec.md
// §6. Blank lines and lines starting with '#' are skipped.
func loadRules(path string) (rewrite.RuleTable, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var table rewrite.RuleTable
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("goof2: malformed rule line %q", line)
		}
		re, err := regexp.Compile(parts[0])
		if err != nil {
			return nil, fmt.Errorf("goof2: bad rule pattern %q: %w", parts[0], err)
		}
		table = append(table, rewrite.Rule{Pattern: re, Replacement: parts[1]})
	}
	return table, nil
}
