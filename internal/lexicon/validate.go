package lexicon

import "dentalgw/internal/kinds"

// Validate enforces the pipeline's only hard precondition (spec §4.1
// Errors): the Snapshot must carry a non-empty separator set. Everything
// else the pipeline treats as optional and defaults around.
func (s *Snapshot) Validate() error {
	if len(s.Separators) == 0 {
		return &kinds.ConfigMissingError{Key: "separators"}
	}
	return nil
}
