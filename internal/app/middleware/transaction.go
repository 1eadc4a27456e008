package middleware

import (
	"context"

	"rentals/internal/app/commands"
	"rentals/internal/app/uow"
)

// NonTransactional is implemented by commands that manage their own units, such as
// gateway callbacks that must never fail on a commit error.
type NonTransactional interface {
	SkipTransaction() bool
}

// Transaction runs each command inside a unit of work committed only when the
// handler succeeds.
func Transaction(factory uow.UoWFactory) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if nt, ok := cmd.(NonTransactional); ok && nt.SkipTransaction() {
				return next.Dispatch(ctx, cmd)
			}
			var res any
			err := uow.Run(ctx, factory, uow.TxOptions{}, func(execCtx context.Context, _ uow.UnitOfWork) error {
				var err error
				res, err = next.Dispatch(execCtx, cmd)
				return err
			})
			if err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
