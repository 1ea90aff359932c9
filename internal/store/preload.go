package store

// Preload applies cb silently, once, before the first ordinary mutation.
//
// If the instance has never notified, cb runs with notifications suppressed
// and applied is true. The gate closes as soon as Preload is entered, so it
// stays closed even when cb writes nothing, fails or panics; later calls (and
// calls after any notification) return false without running cb.
func (i *Instance) Preload(cb func(s *Instance) error) (applied bool, err error) {
	if i.everChanged {
		return false, nil
	}
	i.everChanged = true

	i.silent = true
	defer func() { i.silent = false }()

	if cb == nil {
		return true, nil
	}
	return true, cb(i)
}
