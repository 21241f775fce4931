package errors

// maxChainDepth bounds the walk so a self-referencing chain cannot loop forever
const maxChainDepth = 64

// Chain returns err followed by every previous error, outermost first. The
// walk follows Previous() when available and single-error Unwrap() otherwise.
func Chain(err error) []error {
	var chain []error
	seen := make(map[error]bool)

	for err != nil && len(chain) < maxChainDepth {
		if hashable(err) {
			if seen[err] {
				break
			}
			seen[err] = true
		}
		chain = append(chain, err)
		err = previousOf(err)
	}

	return chain
}

func previousOf(err error) error {
	switch e := err.(type) {
	case interface{ Previous() error }:
		return e.Previous()
	case interface{ Unwrap() error }:
		return e.Unwrap()
	}
	return nil
}

// hashable reports whether err can be used as a map key without panicking
func hashable(err error) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_ = map[error]bool{err: true}
	return true
}
