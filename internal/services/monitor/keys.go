package monitor

import (
	"time"
)

const (
	healthPrefix   = "health:"
	incidentPrefix = "incident:"
	alertPrefix    = "alert:"
)

// keyTime is fixed-width so keys of one service sort chronologically.
const keyTime = "2006-01-02T15:04:05.000000000Z"

func healthKey(service string, at time.Time, suffix string) string {
	return healthPrefix + service + ":" + at.UTC().Format(keyTime) + suffix
}

func incidentKey(service string, at time.Time, suffix string) string {
	return incidentPrefix + service + ":" + at.UTC().Format(keyTime) + suffix
}

func alertKey(id string) string { return alertPrefix + id }
