package sink

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnknownSurface = errors.New("the surface is not registered")

// Owner identifies whoever a surface is attached to.
type Owner string

type Scope int

const (
	ScopeUndefined = Scope(iota)

	// ScopeChild searches only the surfaces attached to Query.Owner.
	ScopeChild

	// ScopeAnywhere searches the whole shared scope.
	ScopeAnywhere
)

func (s Scope) String() string {
	switch s {
	case ScopeUndefined:
		return "undefined"
	case ScopeChild:
		return "child"
	case ScopeAnywhere:
		return "anywhere"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

type Query struct {
	Owner  Owner
	Scope  Scope
	Format Format
}

// Registry is the shared directory of display surfaces. Operations on a
// surface that is not (or no longer) registered return ErrUnknownSurface.
type Registry interface {
	Find(ctx context.Context, q Query) Surface
	Create(ctx context.Context, format Format) (Surface, error)
	Destroy(ctx context.Context, s Surface) error
	Attach(ctx context.Context, s Surface, owner Owner) error
	Detach(ctx context.Context, s Surface, owner Owner) error
	DetachAll(ctx context.Context, s Surface) error

	// Root is the owner surfaces are handed back to when a pipeline ends.
	Root() Owner
}
