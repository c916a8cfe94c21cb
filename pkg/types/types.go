package types

// Task represents one contiguous sub-range of the integration domain,
// assigned to exactly one worker. The coordinator owns a Task until it is
// sent; ownership transfers to the worker for the duration of computation.
type Task struct {
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	Step       float64 `json:"step"`
	TaskID     uint64  `json:"task_id"`
}

// Result is the partial integral a worker computed for one Task. It
// references the task by ID only and is immutable after creation.
type Result struct {
	Value  float64 `json:"value"`
	TaskID uint64  `json:"task_id"`
}

// AssignedID is the first handshake record, sent coordinator to worker.
type AssignedID struct {
	WorkerID uint64 `json:"worker_id"`
}

// ReportedCapacity is the second handshake record, sent worker to
// coordinator. Cores is the worker's count of local execution lanes and is
// reported once; it is never re-negotiated.
type ReportedCapacity struct {
	Cores uint64 `json:"cores"`
}

// WorkerInfo describes one registered worker as seen by the coordinator.
type WorkerInfo struct {
	ID    uint64 `json:"id"`
	Cores uint64 `json:"cores"`
	Addr  string `json:"addr"`
}

// AssignMode selects how tasks are apportioned across workers.
type AssignMode string

const (
	// AssignModeCeil assigns each worker ceil(cores*tasks/totalCores)
	// consecutive tasks in worker-ID order, stopping when the pool is
	// exhausted. Later workers may receive fewer tasks than their share.
	AssignModeCeil AssignMode = "ceil"

	// AssignModeLargestRemainder apportions tasks with the largest-remainder
	// method so the per-worker counts always sum to the pool size.
	AssignModeLargestRemainder AssignMode = "largest_remainder"
)

// Valid reports whether m is a known assignment mode.
func (m AssignMode) Valid() bool {
	return m == AssignModeCeil || m == AssignModeLargestRemainder
}
