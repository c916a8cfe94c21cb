// Package coordinator implements the coordinator process: it accepts worker
// connections, tracks each worker's reported capacity, partitions an
// integration request into capacity-proportional tasks, dispatches them and
// aggregates the returned partial results into one value.
package coordinator
