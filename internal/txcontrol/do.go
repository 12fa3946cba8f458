package txcontrol

import "context"

// Runner is implemented by *Control and *Builder.
type Runner interface {
	Run(ctx context.Context, p Propagation, work Work) error
}

// Do runs work with the given propagation and returns its value. The zero value is
// returned with any error.
func Do[T any](ctx context.Context, r Runner, p Propagation, work func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Run(ctx, p, func(ctx context.Context) error {
		v, err := work(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
