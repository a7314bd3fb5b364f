package services

import "sync"

// doctorLocks serializes booking writes per doctor. Holding a doctor's lock
// across the availability/conflict check and the subsequent write is what
// keeps two concurrent bookings from both passing the conflict check and
// double-booking the slot.
type doctorLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newDoctorLocks() *doctorLocks {
	return &doctorLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for doctorID, creating it on first use, and
// returns the unlock func. Locks are never evicted; the set of doctors is
// small and long-lived.
func (d *doctorLocks) acquire(doctorID string) func() {
	d.mu.Lock()
	lock, ok := d.locks[doctorID]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[doctorID] = lock
	}
	d.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
