// Package worker implements the worker process: it connects to the
// coordinator, reports its local execution capacity once, then computes every
// task it receives by fanning the task's sub-range out across local execution
// lanes and returning the summed partial result.
package worker
