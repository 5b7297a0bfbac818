package wiretx

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// ProgramRegistry is the production Registry: an exact set of monitored
// DEX program addresses, configured once at startup from the operator's
// watch list. AddrLen-sized keys are stored as strings since []byte is
// not a valid map/set key type.
type ProgramRegistry struct {
	programs mapset.Set[string]
}

// NewProgramRegistry builds a ProgramRegistry watching the given target
// addresses.
func NewProgramRegistry(targets ...[]byte) *ProgramRegistry {
	r := &ProgramRegistry{programs: mapset.NewSet[string]()}
	for _, t := range targets {
		r.programs.Add(string(t))
	}
	return r
}

// Add registers an additional program address at runtime.
func (r *ProgramRegistry) Add(target []byte) {
	r.programs.Add(string(target))
}

// IsDEXProgram implements Registry.
func (r *ProgramRegistry) IsDEXProgram(target []byte) bool {
	return r.programs.Contains(string(target))
}
