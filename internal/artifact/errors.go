package artifact

import "errors"

var (
	// ErrSafetyDenied indicates the safety validator refused the
	// artifact. Permanent; never retried or escalated.
	ErrSafetyDenied = errors.New("safety denied")

	// ErrPrivilegeRequired indicates administrator privilege could not
	// be obtained. Fatal for the current phase only.
	ErrPrivilegeRequired = errors.New("administrator privilege required")

	// ErrStrategyFailed indicates one removal strategy failed and the
	// ladder should advance.
	ErrStrategyFailed = errors.New("strategy failed")

	// ErrVerificationFailed indicates an artifact reported removed is
	// still present.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrUnsupportedType indicates an artifact type no engine handles.
	ErrUnsupportedType = errors.New("unsupported artifact type")
)
