package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/um32/emulator/config"
	"github.com/um32/emulator/loader"
	"github.com/um32/emulator/vm"
)

// Version information - can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	// Command-line flags; config supplies the defaults
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		verboseMode = flag.Bool("verbose", false, "Verbose output")
		maxCycles   = flag.Uint64("max-cycles", cfg.Execution.MaxCycles, "Maximum instructions before stopping with an error (0 = unlimited)")

		enableTrace = flag.Bool("trace", cfg.Execution.EnableTrace, "Enable execution trace")
		traceFile   = flag.String("trace-file", "", "Trace output file (default: trace.log in log dir)")
		enableStats = flag.Bool("stats", cfg.Execution.EnableStats, "Enable performance statistics")
		statsFile   = flag.String("stats-file", "", "Statistics output file (default: stats.json or stats.csv in log dir)")
		statsFormat = flag.String("stats-format", cfg.Statistics.Format, "Statistics format (json, csv)")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("UM Emulator %s\n", Version)
		if Commit != "unknown" {
			fmt.Printf("Commit: %s\n", Commit)
		}
		if Date != "unknown" {
			fmt.Printf("Built: %s\n", Date)
		}
		return 0
	}

	if *showHelp || flag.NArg() == 0 {
		printHelp()
		return 0
	}

	programFile := flag.Arg(0)
	if _, err := os.Stat(programFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found: %s\n", programFile)
		return 1
	}

	if *verboseMode {
		fmt.Printf("Loading program: %s\n", programFile)
	}

	machine, err := loader.LoadFile(programFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	machine.CycleLimit = *maxCycles

	if *verboseMode {
		fmt.Printf("Loaded %d words\n", machine.Memory.ProgramLength())
	}

	// Setup execution trace
	if *enableTrace {
		tracePath := *traceFile
		if tracePath == "" {
			tracePath = cfg.Trace.OutputFile
			if tracePath == "" || tracePath == "trace.log" {
				tracePath = filepath.Join(config.GetLogPath(), "trace.log")
			}
		}

		traceWriter, err := os.Create(tracePath) // #nosec G304 -- user-specified trace output path
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating trace file: %v\n", err)
			return 1
		}
		defer func() {
			if err := traceWriter.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close trace file: %v\n", err)
			}
		}()

		machine.ExecutionTrace = vm.NewExecutionTrace(traceWriter)
		machine.ExecutionTrace.MaxEntries = cfg.Trace.MaxEntries
		machine.ExecutionTrace.Start()

		if *verboseMode {
			fmt.Printf("Execution trace enabled: %s\n", tracePath)
		}
	}

	// Setup statistics
	if *enableStats {
		machine.Statistics = vm.NewPerformanceStatistics()
		machine.Statistics.Start()

		if *verboseMode {
			fmt.Println("Performance statistics enabled")
		}
	}

	if *verboseMode {
		fmt.Println("\nStarting execution...")
		fmt.Println("----------------------------------------")
	}

	exitCode := 0
	if err := machine.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "\nRuntime error: %v\n", err)
		exitCode = 1
		if errors.Is(err, vm.ErrBadOpcode) {
			exitCode = 2
		}
	}

	if *verboseMode {
		fmt.Println("\n----------------------------------------")
		fmt.Println("Execution complete")
		fmt.Printf("Instructions executed: %d\n", machine.Cycles)
	}

	if machine.ExecutionTrace != nil {
		if err := machine.ExecutionTrace.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "Error flushing execution trace: %v\n", err)
		}
		if *verboseMode {
			fmt.Printf("Execution trace written (%d entries)\n", len(machine.ExecutionTrace.GetEntries()))
		}
	}

	if machine.Statistics != nil {
		machine.Statistics.Finalize()

		statPath := *statsFile
		if statPath == "" {
			ext := "json"
			if *statsFormat == "csv" {
				ext = "csv"
			}
			statPath = filepath.Join(config.GetLogPath(), "stats."+ext)
		}

		statsWriter, err := os.Create(statPath) // #nosec G304 -- user-specified stats output path
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating statistics file: %v\n", err)
		} else {
			defer func() {
				if err := statsWriter.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close statistics file: %v\n", err)
				}
			}()

			switch *statsFormat {
			case "csv":
				err = machine.Statistics.ExportCSV(statsWriter)
			default:
				err = machine.Statistics.ExportJSON(statsWriter)
			}

			if err != nil {
				fmt.Fprintf(os.Stderr, "Error exporting statistics: %v\n", err)
			} else if *verboseMode {
				fmt.Printf("Statistics exported: %s\n", statPath)
			}
		}

		if *verboseMode {
			fmt.Println()
			fmt.Println(machine.Statistics.String())
		}
	}

	return exitCode
}

func printHelp() {
	fmt.Printf(`UM Emulator %s

Usage: um-emulator [options] <program.um>

Options:
  -help              Show this help message
  -version           Show version information
  -max-cycles N      Maximum instructions before stopping with an error
                     (default: 0, unlimited)
  -verbose           Enable verbose output

Tracing & Performance Options:
  -trace             Enable execution trace
  -trace-file FILE   Trace output file (default: trace.log in log dir)
  -stats             Enable performance statistics
  -stats-file FILE   Statistics output file (default: stats.json, or stats.csv
                     with -stats-format csv, in log dir)
  -stats-format FMT  Statistics format: json, csv (default: json)

The program binary is a headerless sequence of 32-bit big-endian words. The
machine reads bytes from standard input and writes bytes to standard output.
Exit code 0 on a clean halt; nonzero on load or runtime failure.

Examples:
  um-emulator sandmark.um
  um-emulator -verbose -stats codex.um
  um-emulator -trace -trace-file /tmp/trace.log hello.um
`, Version)
}
