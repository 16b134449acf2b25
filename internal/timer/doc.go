// Package timer implements a tick-driven countdown that two independent
// signals can reset or stop.
//
// The countdown and its signal source share only two atomic flags. On every
// tick a pending stop wins over a pending reset, and a reset is only raised
// while no stop has been observed, so a reset can never resurrect a timer
// that has already finished.
package timer
