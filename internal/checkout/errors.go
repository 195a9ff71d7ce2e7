package checkout

import "go.uber.org/multierr"

func combineErrors(errs []error) error {
	return multierr.Combine(errs...)
}
