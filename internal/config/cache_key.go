package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptWorkspaceKey returns the Redis hash key holding one attempt's
// workspace drafts (field = question ID).
func (r *CacheKeyStruct) AttemptWorkspaceKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:workspace", attemptID)
}

// AttemptResumeKey returns the key marking the attempt a restarted
// controller should try to resume.
func (r *CacheKeyStruct) AttemptResumeKey(examID string) string {
	return fmt.Sprintf("exam:%s:resume_attempt", examID)
}

var CacheKey = NewCacheKeyStruct()
