package vm

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// InstructionStats tracks counts for a single operation
type InstructionStats struct {
	Mnemonic string `json:"mnemonic"`
	Count    uint64 `json:"count"`
}

// PerformanceStatistics tracks execution statistics for a run
type PerformanceStatistics struct {
	Enabled bool

	TotalInstructions  uint64
	ExecutionTime      time.Duration
	InstructionsPerSec float64

	// Per-operation breakdown
	InstructionCounts map[string]uint64 // mnemonic -> count

	startTime time.Time
}

// NewPerformanceStatistics creates a new statistics tracker
func NewPerformanceStatistics() *PerformanceStatistics {
	return &PerformanceStatistics{
		Enabled:           true,
		InstructionCounts: make(map[string]uint64),
	}
}

// Start starts statistics collection
func (s *PerformanceStatistics) Start() {
	s.startTime = time.Now()
	s.TotalInstructions = 0
	s.InstructionCounts = make(map[string]uint64)
}

// RecordInstruction records an executed instruction
func (s *PerformanceStatistics) RecordInstruction(mnemonic string) {
	if !s.Enabled {
		return
	}
	s.TotalInstructions++
	s.InstructionCounts[mnemonic]++
}

// Finalize computes the derived metrics after a run
func (s *PerformanceStatistics) Finalize() {
	s.ExecutionTime = time.Since(s.startTime)
	if s.ExecutionTime.Seconds() > 0 {
		s.InstructionsPerSec = float64(s.TotalInstructions) / s.ExecutionTime.Seconds()
	}
}

// GetTopInstructions returns the most frequently executed operations,
// highest count first. Pass n <= 0 for all of them.
func (s *PerformanceStatistics) GetTopInstructions(n int) []InstructionStats {
	stats := make([]InstructionStats, 0, len(s.InstructionCounts))
	for mnemonic, count := range s.InstructionCounts {
		stats = append(stats, InstructionStats{Mnemonic: mnemonic, Count: count})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Mnemonic < stats[j].Mnemonic
	})

	if n > 0 && n < len(stats) {
		return stats[:n]
	}
	return stats
}

// ExportJSON writes the statistics as JSON
func (s *PerformanceStatistics) ExportJSON(w io.Writer) error {
	report := struct {
		TotalInstructions  uint64             `json:"total_instructions"`
		ExecutionTimeMS    float64            `json:"execution_time_ms"`
		InstructionsPerSec float64            `json:"instructions_per_sec"`
		Instructions       []InstructionStats `json:"instructions"`
	}{
		TotalInstructions:  s.TotalInstructions,
		ExecutionTimeMS:    float64(s.ExecutionTime.Microseconds()) / 1000.0,
		InstructionsPerSec: s.InstructionsPerSec,
		Instructions:       s.GetTopInstructions(0),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// ExportCSV writes the per-operation counts as CSV
func (s *PerformanceStatistics) ExportCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"mnemonic", "count"}); err != nil {
		return err
	}
	for _, stat := range s.GetTopInstructions(0) {
		if err := cw.Write([]string{stat.Mnemonic, fmt.Sprintf("%d", stat.Count)}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// String returns a human-readable summary
func (s *PerformanceStatistics) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Instructions executed: %d\n", s.TotalInstructions)
	fmt.Fprintf(&b, "Execution time: %v\n", s.ExecutionTime)
	fmt.Fprintf(&b, "Instructions/sec: %.0f\n", s.InstructionsPerSec)
	fmt.Fprintf(&b, "Breakdown:\n")
	for _, stat := range s.GetTopInstructions(0) {
		fmt.Fprintf(&b, "  %-8s %d\n", stat.Mnemonic, stat.Count)
	}

	return b.String()
}
