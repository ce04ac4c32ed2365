// Package notify delivers finished runs to email, Telegram and Kafka.
//
// Each sink implements Notifier. Sinks are independent: a failure in one is
// logged and reported but never stops the others.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rewired-gh/tenderarb/internal/logger"
	"github.com/rewired-gh/tenderarb/internal/models"
)

// Notifier sends a run result somewhere. report is the rendered Markdown
// report of the run.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, result *models.RunResult, report string) error
}

// All sends the run through every notifier and joins their errors.
func All(ctx context.Context, notifiers []Notifier, result *models.RunResult, report string) error {
	var errs []error
	for _, n := range notifiers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := n.Notify(ctx, result, report); err != nil {
			logger.Warn("Notifier %s failed: %v", n.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		logger.Info("Notifier %s delivered run %s", n.Name(), result.Summary.RunID)
	}
	return errors.Join(errs...)
}
