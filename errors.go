package liverepo

import (
	"fmt"
)

// WriteError reports a collection mutation that could not fully apply:
// the member document write and/or the index rewrite failed. Repositories
// never return it to callers; it reaches Hooks and logs only.
type WriteError struct {
	Path     string
	Op       Operation
	DocErr   error
	IndexErr error
}

func (e *WriteError) Error() string {
	switch {
	case e.DocErr != nil && e.IndexErr != nil:
		return fmt.Sprintf("%s %q failed: document and index writes failed: doc=%v; index=%v",
			e.Op, e.Path, e.DocErr, e.IndexErr)
	case e.DocErr != nil:
		return fmt.Sprintf("%s %q: document write failed: %v", e.Op, e.Path, e.DocErr)
	case e.IndexErr != nil:
		return fmt.Sprintf("%s %q: index write failed: %v", e.Op, e.Path, e.IndexErr)
	default:
		return fmt.Sprintf("%s %q: unknown error", e.Op, e.Path)
	}
}

func (e *WriteError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.DocErr != nil {
		errs = append(errs, e.DocErr)
	}
	if e.IndexErr != nil {
		errs = append(errs, e.IndexErr)
	}
	return errs
}
