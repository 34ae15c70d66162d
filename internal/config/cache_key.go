package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AssessmentMonitorChannel returns the Redis PubSub channel lecturers subscribe to for live alerts.
func (r *CacheKeyStruct) AssessmentMonitorChannel(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:monitor", assessmentID)
}

// StudentActiveStreamKey marks that a student currently holds an open session stream for an assessment.
func (r *CacheKeyStruct) StudentActiveStreamKey(assessmentID, studentID string) string {
	return fmt.Sprintf("student:%s:assessment:%s:stream", studentID, assessmentID)
}

var CacheKey = NewCacheKeyStruct()
