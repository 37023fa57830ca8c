package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Strategy is one way of turning a unique id into a room id.
type Strategy struct {
	Name    string
	Resolve func(ctx context.Context, uniqueID string) (string, error)
}

// OfflineError reports that the broadcaster is definitively not live.
// It stops the resolution chain.
type OfflineError struct {
	UniqueID string
	Reason   string
}

func (e *OfflineError) Error() string {
	return fmt.Sprintf("user %s is offline: %s", e.UniqueID, e.Reason)
}

// Attempt is the failure of one strategy.
type Attempt struct {
	Strategy string
	Err      error
}

// ResolutionError aggregates every strategy failure.
type ResolutionError struct {
	UniqueID string
	Attempts []Attempt
}

func (e *ResolutionError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Strategy+": "+a.Err.Error())
	}
	return fmt.Sprintf("failed to resolve room id for %s: %s", e.UniqueID, strings.Join(parts, "; "))
}

// Unwrap exposes each attempt's cause to errors.Is and errors.As.
func (e *ResolutionError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

var errEmptyRoomID = errors.New("strategy returned an empty room id")

// Resolve runs strategies in order and returns the first room id found.
// An OfflineError is returned as-is without trying the remaining strategies.
func Resolve(ctx context.Context, uniqueID string, strategies []Strategy) (string, error) {
	resErr := &ResolutionError{UniqueID: uniqueID}
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			resErr.Attempts = append(resErr.Attempts, Attempt{Strategy: s.Name, Err: err})
			break
		}

		roomID, err := s.Resolve(ctx, uniqueID)
		if err == nil && roomID == "" {
			err = errEmptyRoomID
		}
		if err == nil {
			return roomID, nil
		}

		var offline *OfflineError
		if errors.As(err, &offline) {
			return "", offline
		}
		resErr.Attempts = append(resErr.Attempts, Attempt{Strategy: s.Name, Err: err})
	}
	if len(resErr.Attempts) == 0 {
		resErr.Attempts = append(resErr.Attempts, Attempt{Strategy: "none", Err: errors.New("no strategies configured")})
	}
	return "", resErr
}
