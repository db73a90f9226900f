package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SetPayloadKey returns the cache key for an exam set's student payload
// (questions without correct options).
func (r *CacheKeyStruct) SetPayloadKey(setID int64) string {
	return fmt.Sprintf("set:%d:payload", setID)
}

// SetAnswerKey returns the cache key for an exam set's answer key hash
// (question id -> correct option).
func (r *CacheKeyStruct) SetAnswerKey(setID int64) string {
	return fmt.Sprintf("set:%d:key", setID)
}

// SetLeaderboardKey returns the sorted-set key holding scores for an exam set.
func (r *CacheKeyStruct) SetLeaderboardKey(setID int64) string {
	return fmt.Sprintf("set:%d:leaderboard", setID)
}

// SetLeaderboardChannel returns the Redis pub/sub channel notified after
// every graded submission for an exam set.
func (r *CacheKeyStruct) SetLeaderboardChannel(setID int64) string {
	return fmt.Sprintf("set:%d:leaderboard:events", setID)
}

// UserAttemptKey returns the key marking that a user already submitted a set.
func (r *CacheKeyStruct) UserAttemptKey(setID int64, userID int64) string {
	return fmt.Sprintf("user:%d:set:%d:attempt", userID, setID)
}

var CacheKey = NewCacheKeyStruct()
