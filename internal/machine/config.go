package machine

// Config controls how a Machine behaves at construction time.
type Config struct {
	// Trace is set from cmd/gbemu's -trace flag. Machine itself doesn't
	// trace and no host tool reads this field, so it produces no output.
	Trace bool

	// LimitFPS is stored but not read: StepFrame runs as fast as the host
	// calls it whether or not this is set.
	LimitFPS bool

	// UseFetcherBG is retained for CLI/config compatibility; the PPU always
	// renders through its fetcher/FIFO pipeline now, so this has no effect.
	UseFetcherBG bool
}
