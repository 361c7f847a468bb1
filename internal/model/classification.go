// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"time"
)

// FailureReason explains why a classification produced no category.
type FailureReason string

// Classification failure reasons.
const (
	ReasonFileNotFound      FailureReason = "file-not-found"
	ReasonDecodeFailure     FailureReason = "decode-failure"
	ReasonInvalidDimensions FailureReason = "invalid-dimensions"
	ReasonLowConfidence     FailureReason = "low-confidence"
	ReasonInferenceError    FailureReason = "inference-error"

	// Placement failures reported by the scan pipeline.
	ReasonDirectoryCreate FailureReason = "directory-create-failure"
	ReasonMoveIO          FailureReason = "move-io-failure"
)

// Result is the outcome of classifying one image. It is either a success
// (Reason is empty, Category and Confidence set) or a failure (Reason set).
type Result struct {
	Err        error
	Category   Category
	Reason     FailureReason
	Message    string
	Confidence float64
}

// Succeeded builds a successful result.
func Succeeded(category Category, confidence float64) Result {
	return Result{Category: category, Confidence: confidence}
}

// Failed builds a failed result. The error, when present, becomes the message.
func Failed(reason FailureReason, err error) Result {
	r := Result{Reason: reason, Err: err}
	if err != nil {
		r.Message = err.Error()
	}
	return r
}

// OK reports whether the result carries a category.
func (r Result) OK() bool {
	return r.Reason == ""
}

func (r Result) String() string {
	if r.OK() {
		return fmt.Sprintf("%s (%.0f%%)", r.Category, r.Confidence*100)
	}
	if r.Message != "" {
		return fmt.Sprintf("%s: %s", r.Reason, r.Message)
	}
	return string(r.Reason)
}

// PlacementStatus records how a file reached its directory.
type PlacementStatus string

// Placement status constants.
const (
	StatusClassified PlacementStatus = "CLASSIFIED"
	StatusFallback   PlacementStatus = "FALLBACK"
	StatusReviewed   PlacementStatus = "REVIEWED"
	StatusUnplaced   PlacementStatus = "UNPLACED"
)

// Placement is a persisted record of one file handled by a scan run or review.
type Placement struct {
	PlacedAt    time.Time
	RunID       string
	Source      string
	Destination string
	Category    Category
	Status      PlacementStatus
	Reason      FailureReason
	Message     string
	ID          int64
	Confidence  float64
}

// ReviewDecision records a manual confirmation or override of a suggestion.
type ReviewDecision struct {
	DecidedAt   time.Time
	Path        string
	Destination string
	Suggested   Category
	Chosen      Category
	Confidence  float64
	Retried     bool
}

// Overridden reports whether the user picked something other than the suggestion.
func (d ReviewDecision) Overridden() bool {
	return d.Suggested != d.Chosen
}
