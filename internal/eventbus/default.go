package eventbus

import "sync"

var (
	defaultOnce sync.Once
	defaultBus  *Bus
)

// Default returns the process-wide bus, creating it on first use with
// default options. It lives for the life of the process.
func Default() *Bus {
	defaultOnce.Do(func() {
		defaultBus = New()
	})
	return defaultBus
}

// InitDefault creates the process-wide bus with opts. It must run before the
// first call to Default; it returns false if the bus already exists.
func InitDefault(opts ...Option) bool {
	created := false
	defaultOnce.Do(func() {
		defaultBus = New(opts...)
		created = true
	})
	return created
}
