package service

import (
	"time"

	"bandonotifier/pkg/metric"
)

type NotifierOption func(*NotifierService)

// WithSettingsCache fronts settings lookups with a read-through cache.
func WithSettingsCache(cache SettingsProfileCache) NotifierOption {
	return func(s *NotifierService) {
		if cache != nil {
			s.cache = cache
		}
	}
}

func WithNotifierMetrics(m *metric.Metrics) NotifierOption {
	return func(s *NotifierService) {
		s.metrics = m
	}
}

// WithNotifierClock overrides the wall clock; tests inject a fixed one.
func WithNotifierClock(now func() time.Time) NotifierOption {
	return func(s *NotifierService) {
		if now != nil {
			s.now = now
		}
	}
}

type EmailOption func(*EmailService)

func WithEmailMetrics(m *metric.Metrics) EmailOption {
	return func(s *EmailService) {
		s.metrics = m
	}
}

func WithEmailClock(now func() time.Time) EmailOption {
	return func(s *EmailService) {
		if now != nil {
			s.now = now
		}
	}
}
