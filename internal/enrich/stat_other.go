//go:build !linux && !darwin

package enrich

import "time"

func creationTime(string) (time.Time, error) {
	return time.Time{}, nil
}
