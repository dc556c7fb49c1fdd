package tools

// Rung is one step of a ratchet ladder: when price confirms past
// Trigger, the protective stop moves to Stop.
type Rung struct {
	Trigger float64
	Stop    float64
}

// RatchetStop walks a protective stop along a ladder of levels as the
// market confirms in the position's favor. Locations run 0, 1, 2 and
// end at -1 once the ladder is exhausted.
type RatchetStop struct {
	long     bool
	rungs    []Rung
	location int
	active   bool
}

func NewRatchetStop(long bool, rungs []Rung) *RatchetStop {
	return &RatchetStop{long: long, rungs: rungs}
}

// Start activates the ladder at the given location.
func (r *RatchetStop) Start(location int) {
	r.location = location
	r.active = true
}

func (r *RatchetStop) Stop() {
	r.active = false
}

func (r *RatchetStop) Active() bool {
	return r.active
}

func (r *RatchetStop) Location() int {
	return r.location
}

// Update checks the confirmation close against the current rung and
// advances at most one step. It returns the new stop level when the
// ladder moved.
func (r *RatchetStop) Update(close float64) (float64, bool) {
	if !r.active || r.location < 0 || r.location >= len(r.rungs) {
		return 0, false
	}

	rung := r.rungs[r.location]
	crossed := close >= rung.Trigger
	if !r.long {
		crossed = close <= rung.Trigger
	}
	if !crossed {
		return 0, false
	}

	r.location++
	if r.location >= len(r.rungs) {
		r.location = -1
	}
	return rung.Stop, true
}
