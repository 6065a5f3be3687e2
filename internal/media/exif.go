package media

import (
	"fmt"
	"os"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// CaptureDate reads the EXIF DateTime of an image file.
func CaptureDate(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode exif: %w", err)
	}
	taken, err := x.DateTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("exif datetime: %w", err)
	}
	return taken, nil
}

// DateTag formats a capture date as an upload tag.
func DateTag(t time.Time) string {
	return "taken-" + t.Format("2006-01-02")
}
