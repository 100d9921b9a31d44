package transport

// Status values reported by the socket tuning helpers: whether a requested
// buffer/window size was applied, unavailable on this platform, or denied
// by the OS (e.g. insufficient privilege to raise SO_RCVBUF beyond the
// system default).
const (
	StatusOK     = "ok"
	StatusNA     = "n/a"
	StatusDenied = "denied"
)
