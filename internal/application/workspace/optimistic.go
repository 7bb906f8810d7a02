package workspace

import "context"

// optimistic is a three-phase command: apply mutates local state ahead of the
// call, then exactly one of commit or rollback runs with the call's outcome.
// apply may refuse to start by returning an error; nothing else runs then.
type optimistic[T any] struct {
	apply    func() error
	call     func(ctx context.Context) (T, error)
	commit   func(T)
	rollback func(error)
}

func (o optimistic[T]) run(ctx context.Context) (T, error) {
	var zero T
	if err := o.apply(); err != nil {
		return zero, err
	}
	v, err := o.call(ctx)
	if err != nil {
		o.rollback(err)
		return zero, err
	}
	o.commit(v)
	return v, nil
}
