package system

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a snapshot of this process' resource usage.
type Stats struct {
	RSS        uint64
	CPUPercent float64
	Threads    int32
}

func (s Stats) String() string {
	return fmt.Sprintf("RSS %.1f MiB | CPU %.1f%% | threads %d",
		float64(s.RSS)/(1024*1024), s.CPUPercent, s.Threads)
}

// StatsSampler reads Stats for the current process.
type StatsSampler struct {
	proc *process.Process
}

func NewStatsSampler() (*StatsSampler, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &StatsSampler{proc: p}, nil
}

// Sample returns the current stats. CPUPercent is averaged since the
// previous call (or process start on the first call).
func (s *StatsSampler) Sample() (Stats, error) {
	mem, err := s.proc.MemoryInfo()
	if err != nil {
		return Stats{}, err
	}
	cpu, err := s.proc.Percent(0)
	if err != nil {
		return Stats{}, err
	}
	threads, err := s.proc.NumThreads()
	if err != nil {
		return Stats{}, err
	}
	return Stats{RSS: mem.RSS, CPUPercent: cpu, Threads: threads}, nil
}
