// Package ledger implements a lock-guarded shared balance.
//
// Every mutation is a single critical section: the read of the current
// balance, the funds check, the write and the log line describing the
// committed result all happen while the ledger's mutex is held. Concurrent
// callers therefore observe a total order of mutations, and log output can
// never disagree with that order.
package ledger
