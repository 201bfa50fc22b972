package deferer

// SetExit replaces the process exit function and returns a restore func
func SetExit(fn func(int)) func() {
	old := exit
	exit = fn
	return func() { exit = old }
}
