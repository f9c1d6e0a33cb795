package octree

import "github.com/aukilabs/go-tooling/pkg/errors"

// ErrTypeInvalidBounds tags construction failures: capacity < 1 or depth < 0.
const ErrTypeInvalidBounds = "octree_invalid_bounds"

// ErrTypeUseAfterRemove tags a handle used after it (or its index) was
// cleared, per spec section 7.
const ErrTypeUseAfterRemove = "octree_use_after_remove"

func newInvalidBoundsError(reason string) error {
	return errors.New("invalid octree configuration").
		WithType(ErrTypeInvalidBounds).
		WithTag("reason", reason)
}

func newUseAfterRemoveError(h Handle) error {
	return errors.New("handle used after remove").
		WithType(ErrTypeUseAfterRemove).
		WithTag("handle_index", h.index).
		WithTag("handle_generation", h.generation)
}
