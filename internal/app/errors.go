package service

import "errors"

// Sentinel errors returned by the Service. The HTTP layer maps them to
// status codes.
var (
	ErrNotStarted         = errors.New("service not started")
	ErrNotConfigured      = errors.New("service dependency not configured")
	ErrInvalidUsername    = errors.New("username must not be empty")
	ErrNoMedia            = errors.New("submission has neither photo nor video")
	ErrEvaluationNotFound = errors.New("evaluation not found or expired")
	ErrNotEligible        = errors.New("evaluation earned no points")
	ErrAlreadyConfirmed   = errors.New("evaluation already confirmed")
	ErrAwardNotRecorded   = errors.New("award not recorded")
)
