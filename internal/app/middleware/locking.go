package middleware

import (
	"context"
	"log/slog"

	"rentals/internal/app/commands"
	"rentals/internal/app/policies"
)

// LockScoped is implemented by commands whose check-then-write sequence must not
// interleave with another command on the same key.
type LockScoped interface {
	LockKey() string
}

// Locking holds the command's advisory lock across everything inside it. It must sit
// outside Transaction so the lock is released only after commit.
func Locking(locker policies.Locker, logger *slog.Logger) CommandMiddleware {
	if locker == nil {
		panic("middleware: locker required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			scoped, ok := cmd.(LockScoped)
			if !ok || scoped.LockKey() == "" {
				return next.Dispatch(ctx, cmd)
			}
			key := scoped.LockKey()
			release, err := locker.Acquire(ctx, key)
			if err != nil {
				if logger != nil {
					logger.Warn("lock acquisition failed", "key", key, "command", cmd.Key(), "error", err)
				}
				return nil, err
			}
			defer release()
			return next.Dispatch(ctx, cmd)
		})
	}
}
