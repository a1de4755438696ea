package maestro

import (
	"context"
	"time"
)

// notVisiblePollInterval is the fixed poll granularity for notVisible
// conditions: each attempt uses a short 500ms lookup so the overall
// adjusted timeout is spent retrying, not blocked in one long lookup call.
const notVisiblePollInterval = 500 * time.Millisecond

// evaluateCondition implements the condition evaluator. A nil/empty
// condition is vacuously true; every set sub-condition must hold.
func (o *Orchestra) evaluateCondition(ctx context.Context, cond *Condition, timeoutMs int) (bool, error) {
	if cond.IsEmpty() {
		return true, nil
	}

	if cond.Platform != "" {
		info, err := o.deviceInfo(ctx)
		if err != nil {
			return false, err
		}
		if Platform(info.Platform) != cond.Platform {
			return false, nil
		}
	}

	if cond.Visible != nil {
		base := timeoutMs
		if base == 0 {
			base = o.config.OptionalLookupTimeoutMs
		}
		if _, _, err := o.findElement(ctx, *cond.Visible, base); err != nil {
			if isElementNotFound(err) {
				return false, nil
			}
			return false, err
		}
	}

	if cond.NotVisible != nil {
		ok, err := o.evaluateNotVisible(ctx, *cond.NotVisible, timeoutMs)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	if cond.ScriptCondition != "" {
		if !scriptConditionTruthy(cond.ScriptCondition) {
			return false, nil
		}
	}

	return true, nil
}

// evaluateNotVisible polls findElement with a short fixed timeout within the
// overall adjusted deadline; it succeeds (condition true) only if the
// element is absent by the time the deadline passes.
func (o *Orchestra) evaluateNotVisible(ctx context.Context, sel ElementSelector, timeoutMs int) (bool, error) {
	base := o.config.optionalLookupTimeout()
	if timeoutMs > 0 {
		base = time.Duration(timeoutMs) * time.Millisecond
	}
	deadline := time.Now().Add(adjustedTimeout(base, time.Now(), o.lastInteraction))

	for {
		_, _, err := o.findElement(ctx, sel, int(notVisiblePollInterval/time.Millisecond))
		if err != nil {
			if isElementNotFound(err) {
				return true, nil
			}
			return false, err
		}
		// still visible
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(notVisiblePollInterval):
		}
	}
}

func isElementNotFound(err error) bool {
	ee, ok := err.(*ExecutionError)
	return ok && ee.Code == "element_not_found"
}
