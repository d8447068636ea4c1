package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a named module has been administratively halted.
type PauseView interface {
	IsPaused(module string) bool
}

// PauseSet is a fixed PauseView over a set of module names, typically sourced
// from configuration.
type PauseSet map[string]struct{}

// NewPauseSet builds a PauseSet from a list of module names.
func NewPauseSet(modules []string) PauseSet {
	set := make(PauseSet, len(modules))
	for _, m := range modules {
		set[m] = struct{}{}
	}
	return set
}

// IsPaused implements PauseView.
func (s PauseSet) IsPaused(module string) bool {
	_, ok := s[module]
	return ok
}

// Guard returns ErrModulePaused when the module is halted. A nil view or empty
// module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
