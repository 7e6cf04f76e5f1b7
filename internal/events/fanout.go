package events

import (
	"context"
	"errors"

	"github.com/fjod/bakery-storefront/internal/domain"
)

// Fanout publishes every event to each of its publishers in order and joins
// their errors.
type Fanout []Publisher

func (f Fanout) PublishCartChanged(ctx context.Context, evt domain.CartChanged) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishCartChanged(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) PublishOrderPlaced(ctx context.Context, evt domain.OrderPlaced) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishOrderPlaced(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
