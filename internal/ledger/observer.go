package ledger

// Observer receives a notification after each committed or rejected mutation.
// Implementations must be fast and must not call back into the Ledger.
type Observer interface {
	// OnCredit is called after a credit has been committed.
	OnCredit(amount, balance int64)

	// OnDebit is called after a debit attempt; err is nil when it was committed.
	OnDebit(amount, balance int64, err error)
}

// NoopObserver ignores all notifications.
type NoopObserver struct{}

func (NoopObserver) OnCredit(int64, int64)       {}
func (NoopObserver) OnDebit(int64, int64, error) {}
