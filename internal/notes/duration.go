package notes

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
)

// ProbeDuration returns the audio length in seconds, rounded to two
// decimals, or nil when the length cannot be determined. Only WAV containers
// are probed; other formats would need ffprobe and are left unknown.
func ProbeDuration(path string) *float64 {
	if strings.ToLower(filepath.Ext(path)) != ".wav" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	d, err := dec.Duration()
	if err != nil || d <= 0 {
		return nil
	}
	secs := math.Round(d.Seconds()*100) / 100
	return &secs
}
