// Package job defines the Job entity and its legal states.
//
// A Job is an opaque shell command plus delivery state: attempts, retry
// budget, and timestamps. Job values returned by the store are snapshots;
// transitions happen through Store and Dispatcher methods, not by mutating
// a Job directly.
package job
