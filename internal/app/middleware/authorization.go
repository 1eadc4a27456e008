package middleware

import (
	"context"
	"fmt"

	"rentals/internal/app/commands"
	"rentals/internal/app/queries"
	domainbooking "rentals/internal/domain/booking"
	"rentals/internal/domain/user"
)

// Authored is implemented by messages issued on behalf of a principal.
type Authored interface {
	Principal() user.Principal
}

// Authorization rejects authored messages that carry no principal. Finer-grained
// checks need the loaded booking and live in the domain policy table.
func Authorization() CommandMiddleware {
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := requirePrincipal(cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryAuthorization() QueryMiddleware {
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := requirePrincipal(q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}

func requirePrincipal(message any) error {
	authored, ok := message.(Authored)
	if !ok {
		return nil
	}
	p := authored.Principal()
	if p.IsZero() || p.Role == "" {
		return fmt.Errorf("%w: principal required", domainbooking.ErrUnauthorized)
	}
	return nil
}
