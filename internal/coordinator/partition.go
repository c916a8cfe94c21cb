package coordinator

import (
	"github.com/TR14WR/Testinfotecs/pkg/types"
)

// PartitionRange divides [lower, upper) into exactly units contiguous
// equal-width tasks at the given step, the last task absorbing any
// floating-point remainder so the union covers the range with no gap or
// overlap. Task ids are request-local and sequential from 0 in range order.
// A non-positive range or step, or units < 1, yields no tasks.
func PartitionRange(lower, upper, step float64, units int) []types.Task {
	if units < 1 || upper-lower <= 0 || step <= 0 {
		return nil
	}

	width := (upper - lower) / float64(units)
	tasks := make([]types.Task, units)
	current := lower
	for i := 0; i < units; i++ {
		next := current + width
		if i == units-1 {
			next = upper
		}
		tasks[i] = types.Task{
			LowerBound: current,
			UpperBound: next,
			Step:       step,
			TaskID:     uint64(i),
		}
		current = next
	}
	return tasks
}

// WorkerShare names one worker's capacity for assignment.
type WorkerShare struct {
	ID    uint64
	Cores uint64
}

// Assign apportions numTasks across workers (in the given order) and returns
// the per-worker task counts. totalCores must be the sum of the workers'
// cores.
//
// In ceil mode each worker takes ceil(cores*numTasks/totalCores) consecutive
// tasks until the pool runs out; the rounding can exhaust the pool before
// later workers receive their proportional share. Largest-remainder mode
// distributes floor shares first and hands the leftover tasks to the largest
// fractional remainders, so the counts always sum to numTasks.
func Assign(workers []WorkerShare, numTasks int, totalCores uint64, mode types.AssignMode) []int {
	counts := make([]int, len(workers))
	if numTasks <= 0 || totalCores == 0 {
		return counts
	}

	if mode == types.AssignModeLargestRemainder {
		assignLargestRemainder(workers, numTasks, totalCores, counts)
		return counts
	}

	remaining := numTasks
	for i, w := range workers {
		if remaining == 0 {
			break
		}
		// ceil(cores * numTasks / totalCores) in integer arithmetic.
		share := int((w.Cores*uint64(numTasks) + totalCores - 1) / totalCores)
		if share > remaining {
			share = remaining
		}
		counts[i] = share
		remaining -= share
	}
	return counts
}

func assignLargestRemainder(workers []WorkerShare, numTasks int, totalCores uint64, counts []int) {
	type remainder struct {
		index int
		value uint64 // numerator remainder of cores*numTasks/totalCores
	}

	assigned := 0
	remainders := make([]remainder, len(workers))
	for i, w := range workers {
		numerator := w.Cores * uint64(numTasks)
		counts[i] = int(numerator / totalCores)
		remainders[i] = remainder{index: i, value: numerator % totalCores}
		assigned += counts[i]
	}

	// Hand leftovers to the largest remainders; ties break on earlier
	// (lower-id) workers to keep the distribution deterministic.
	for assigned < numTasks {
		best := -1
		for j, r := range remainders {
			if r.index < 0 {
				continue
			}
			if best == -1 || r.value > remainders[best].value {
				best = j
			}
		}
		if best == -1 {
			break
		}
		counts[remainders[best].index]++
		remainders[best].index = -1
		assigned++
	}
}
