package enums

import "fmt"

// ReviewStatus is the lifecycle of a quote review job.
type ReviewStatus string

const (
	ReviewStatusPending   ReviewStatus = "pending"
	ReviewStatusRunning   ReviewStatus = "running"
	ReviewStatusCompleted ReviewStatus = "completed"
	ReviewStatusFailed    ReviewStatus = "failed"
)

var validReviewStatuses = []ReviewStatus{
	ReviewStatusPending,
	ReviewStatusRunning,
	ReviewStatusCompleted,
	ReviewStatusFailed,
}

func (s ReviewStatus) IsValid() bool {
	for _, candidate := range validReviewStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Terminal reports whether the job will not change again.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewStatusCompleted || s == ReviewStatusFailed
}

func ParseReviewStatus(value string) (ReviewStatus, error) {
	for _, candidate := range validReviewStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid review status %q", value)
}
