package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptAnswersKey returns the cache key for an attempt's in-progress
// answers hash (question ID -> answer JSON).
func (r *CacheKeyStruct) AttemptAnswersKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptID)
}

// AttemptEventsChannel returns the PubSub channel for an attempt's lifecycle
// events (graded notification for the live stream).
func (r *CacheKeyStruct) AttemptEventsChannel(attemptID string) string {
	return fmt.Sprintf("attempt:%s:events", attemptID)
}

var CacheKey = NewCacheKeyStruct()
