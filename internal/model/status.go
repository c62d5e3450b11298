package model

import "time"

// StatusKind enumerates every state an object's wanted/actual status can be in.
type StatusKind string

const (
	StatusUnknown    StatusKind = "Unknown"
	StatusCreated    StatusKind = "Created"
	StatusStarting   StatusKind = "Starting"
	StatusStart      StatusKind = "Start"
	StatusStopping   StatusKind = "Stopping"
	StatusStop       StatusKind = "Stop"
	StatusFinish     StatusKind = "Finish"
	StatusDestroying StatusKind = "Destroying"
	StatusDestroy    StatusKind = "Destroy"
	StatusPatching   StatusKind = "Patching"
	StatusFail       StatusKind = "Fail"
)

// ObjPsStatus is the dual wanted/actual status record carried by every
// reconcilable object. Both wanted and actual retain their previous value so
// a reconciler or an API client can detect the transition that just happened.
type ObjPsStatus struct {
	Key        string     `json:"key" db:"key"`
	Kind       Kind       `json:"kind" db:"kind"`
	Wanted     StatusKind `json:"wanted" db:"wanted"`
	PrevWanted StatusKind `json:"prev_wanted" db:"prev_wanted"`
	Actual     StatusKind `json:"actual" db:"actual"`
	PrevActual StatusKind `json:"prev_actual" db:"prev_actual"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// SetWanted atomically advances wanted, carrying the old value to PrevWanted.
// Per invariant I2, only API-facing code (the lifecycle engine's Put/Patch/
// Delete/Revert entry points) should call this; reconcilers call SetActual.
func (s *ObjPsStatus) SetWanted(kind StatusKind) {
	s.PrevWanted = s.Wanted
	s.Wanted = kind
}

// SetActual atomically advances actual, carrying the old value to PrevActual.
// Only the reconciler (driven by runtime-adapter observations and native
// events) should call this, per invariant I2.
func (s *ObjPsStatus) SetActual(kind StatusKind) {
	s.PrevActual = s.Actual
	s.Actual = kind
}

// wantedTransitions is the allowed set of values wanted may ever take.
var wantedTransitions = map[StatusKind]bool{
	StatusCreated:   true,
	StatusStart:     true,
	StatusStop:      true,
	StatusDestroy:   true,
	StatusPatching:  true,
}

// IsValidWanted reports whether kind is one of the statuses the API is
// allowed to set as wanted: Create, Start, Stop, Destroy, Update, Patch,
// Revert all resolve to one of these terminal wanted states in this model
// (Update/Patch/Revert all drive wanted=Start via a teardown+recreate spec
// swap, see lifecycle.Put).
func IsValidWanted(kind StatusKind) bool {
	return wantedTransitions[kind]
}
