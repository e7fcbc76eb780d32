package decoder

import (
	"fmt"

	trackererrors "github.com/oraichain/ibc-routing/tracker/errors"
)

func missingAttribute(eventType, key string) *trackererrors.TrackerError {
	return trackererrors.NewDecodeError("", fmt.Sprintf("%s event is missing attribute %q", eventType, key), nil).
		WithContext("event_type", eventType)
}

func invalidAttribute(eventType, key string, cause error) *trackererrors.TrackerError {
	return trackererrors.NewDecodeError("", fmt.Sprintf("%s event has invalid attribute %q", eventType, key), cause).
		WithContext("event_type", eventType)
}

func decodeError(domain, message string, cause error) *trackererrors.TrackerError {
	return trackererrors.NewDecodeError(domain, message, cause)
}
