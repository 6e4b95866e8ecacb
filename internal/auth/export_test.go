package auth

import "time"

func NewServiceWithClock(repo Repository, sessionTTL time.Duration, now func() time.Time) Provider {
	return &service{repo: repo, sessionTTL: sessionTTL, now: now}
}
