package store

// SetCommitHook installs fn to run between a RedisStore write's read and its commit.
func SetCommitHook(s *RedisStore, fn func(op string)) {
	s.commitHook = fn
}
