// Package task implements a bounded first-in-first-out work queue shared by
// one producer and a pool of consumers.
//
// Termination is cooperative: when production ends the producer appends one
// sentinel per consumer, and each consumer stops pulling as soon as it pops
// a sentinel. WaitDrain lets the orchestrating goroutine block until every
// real item has been popped and acknowledged, without polling.
package task
