package valueobjects

import (
	"fmt"
	"time"
)

const dayBucketLayout = "2006-01-02"

// DayBucket is the partition value of the latest-videos view: one partition
// per UTC calendar day.
type DayBucket string

// DayBucketOf returns the bucket containing t.
func DayBucketOf(t time.Time) DayBucket {
	return DayBucket(t.UTC().Format(dayBucketLayout))
}

// ParseDayBucket validates a YYYY-MM-DD bucket string.
func ParseDayBucket(s string) (DayBucket, error) {
	if _, err := time.Parse(dayBucketLayout, s); err != nil {
		return "", fmt.Errorf("invalid day bucket %q: want YYYY-MM-DD", s)
	}
	return DayBucket(s), nil
}

// Previous returns the bucket for the preceding day.
func (d DayBucket) Previous() DayBucket {
	t, err := time.Parse(dayBucketLayout, string(d))
	if err != nil {
		return d
	}
	return DayBucketOf(t.AddDate(0, 0, -1))
}

func (d DayBucket) String() string { return string(d) }
