package enrich

import "time"

// creationTime: Linux does not expose file birth time through os.Stat, so
// creation degrades to "unknown".
func creationTime(string) (time.Time, error) {
	return time.Time{}, nil
}
