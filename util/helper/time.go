package helper_util

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Helper function to parse time
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	return t, err
}

// GetTimeRangeParams reads an optional from/to query pair, defaulting to the
// last 30 days.
func GetTimeRangeParams(c *gin.Context) (from, to time.Time, err error) {
	to = time.Now()
	from = to.AddDate(0, 0, -30)

	if v := c.Query("from"); v != "" {
		from, err = ParseTime(v)
		if err != nil {
			return from, to, err
		}
	}
	if v := c.Query("to"); v != "" {
		to, err = ParseTime(v)
		if err != nil {
			return from, to, err
		}
	}
	return from, to, nil
}
