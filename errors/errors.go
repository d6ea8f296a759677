package errors

import "errors"

var (
	ErrBadConfig           = errors.New("config: invalid config")
	ErrInvalidDateRange    = errors.New("config: start date is after end date")
	ErrInvalidDate         = errors.New("config: invalid date, expected YYYY-MM-DD")
	ErrInvalidThroughput   = errors.New("config: throughput must be greater than zero")
	ErrUnknownPolicy       = errors.New("policy: unknown policy variant")
	ErrInvalidOutputFormat = errors.New("report: invalid output format")
	ErrUnknownInventory    = errors.New("inventory: unknown inventory driver")
	ErrRepoNotFound        = errors.New("repository: not found")
	ErrRepoEvaluation      = errors.New("repository: evaluation failed")
	ErrSnapshotNotFound    = errors.New("snapshot: file not found")
	ErrSnapshotEmpty       = errors.New("snapshot: no inventory captured")
	ErrBucketNotFound      = errors.New("snapshot: bucket not found")
	ErrPartialRun          = errors.New("run: one or more repositories failed")
)
