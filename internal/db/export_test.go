package db

// WithRetryable swaps the busy classifier so tests can simulate lock
// contention without a second connection.
func WithRetryable(f func(error) bool) UoWOption {
	return func(u *SQLiteUnitOfWork) { u.retryable = f }
}
