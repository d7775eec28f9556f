package memory

import (
	"fmt"
	"time"

	"tasktracker/pkg/domain"
)

var zeroTime time.Time

func validateTask(t *domain.Task) error {
	if t == nil {
		return fmt.Errorf("%w: nil task", domain.ErrMalformed)
	}
	return validateSlot(domain.KindTask, t.Status, t.Duration)
}

func validateSubtask(st *domain.Subtask) error {
	if st == nil {
		return fmt.Errorf("%w: nil subtask", domain.ErrMalformed)
	}
	return validateSlot(domain.KindSubtask, st.Status, st.Duration)
}

func validateSlot(kind domain.Kind, status domain.Status, d time.Duration) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s status %q", domain.ErrMalformed, kind, status)
	}
	if d < 0 {
		return fmt.Errorf("%w: %s duration %s is negative", domain.ErrMalformed, kind, d)
	}
	return nil
}

func normalizeStatus(st domain.Status) domain.Status {
	if st == "" {
		return domain.StatusNew
	}
	return st
}
