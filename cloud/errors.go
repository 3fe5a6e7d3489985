package cloud

import (
	"errors"

	"github.com/aws/smithy-go"
)

// ErrorCode returns the API error code carried by err, or "" when err did
// not come from an AWS API.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsTokenGone reports whether the orchestrator no longer accepts the task
// token: the task finished, timed out, or the token is malformed. Retrying
// the redemption cannot succeed.
func IsTokenGone(err error) bool {
	switch ErrorCode(err) {
	case "TaskDoesNotExist", "TaskTimedOut", "InvalidToken":
		return true
	}
	return false
}

// IsPermanent reports attach or describe failures that waiting will not
// fix: missing resources, malformed ids and authorisation failures.
func IsPermanent(err error) bool {
	switch ErrorCode(err) {
	case "UnauthorizedOperation", "AuthFailure",
		"InvalidVolume.NotFound", "InvalidVolumeID.Malformed",
		"InvalidInstanceID.NotFound", "InvalidInstanceID.Malformed",
		"InvalidParameterValue":
		return true
	}
	return false
}
