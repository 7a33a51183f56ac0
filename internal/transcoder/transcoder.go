// Package transcoder normalizes uploaded audio with ffmpeg before the
// pipeline runs. Plan is pure and unit-tested; Transcode shells out and its
// failure aborts the upload with a user-facing error.
package transcoder

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Plan describes what to do with one upload: where it ends up and the
// format metadata the note record carries.
type Plan struct {
	SourceExt      string
	TargetExt      string
	NeedsTranscode bool
	StoredMime     string
	SampleRateHz   int
	TranscodedFrom string
}

func extOf(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

var storedMimes = map[string]string{
	"m4a":  "audio/mp4",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"webm": "audio/webm",
}

// PlanFor decides how an upload is stored: webm/ogg and video containers are
// transcoded to AAC (m4a), mp3 and real m4a pass through, anything else is
// normalized to 16 kHz mono WAV.
func PlanFor(contentType, filename string) Plan {
	ct := strings.ToLower(contentType)
	nameExt := extOf(filename)

	isVideo := strings.HasPrefix(ct, "video/") ||
		nameExt == "mkv" || nameExt == "mp4" || nameExt == "mov" || nameExt == "avi"

	var p Plan
	switch {
	case isVideo:
		p = Plan{SourceExt: orDefault(nameExt, "mkv"), TargetExt: "m4a", NeedsTranscode: true}
	case strings.Contains(ct, "webm") || nameExt == "webm":
		p = Plan{SourceExt: "webm", TargetExt: "m4a", NeedsTranscode: true}
	case strings.Contains(ct, "ogg") || nameExt == "ogg":
		p = Plan{SourceExt: "ogg", TargetExt: "m4a", NeedsTranscode: true}
	case strings.Contains(ct, "m4a") || strings.Contains(ct, "mp4") || strings.Contains(ct, "aac") ||
		nameExt == "m4a" || nameExt == "mp4a" || nameExt == "aac":
		// Already AAC-family; remux only when the extension disagrees.
		p = Plan{SourceExt: "m4a", TargetExt: "m4a",
			NeedsTranscode: nameExt != "m4a" && nameExt != "mp4a" && nameExt != "aac"}
	case strings.Contains(ct, "mp3") || nameExt == "mp3":
		p = Plan{SourceExt: "mp3", TargetExt: "mp3"}
	default:
		p = Plan{SourceExt: orDefault(nameExt, "wav"), TargetExt: "wav", NeedsTranscode: true}
	}

	if mime, ok := storedMimes[p.TargetExt]; ok {
		p.StoredMime = mime
	} else {
		p.StoredMime = "audio/" + p.TargetExt
	}
	switch p.TargetExt {
	case "m4a":
		p.SampleRateHz = 44100
	case "wav":
		p.SampleRateHz = 16000
	}
	if p.NeedsTranscode && p.SourceExt != p.TargetExt {
		p.TranscodedFrom = p.SourceExt
	}
	return p
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Transcode runs ffmpeg to produce dst from src according to the plan. The
// returned error carries ffmpeg's stderr so upload failures are diagnosable.
func Transcode(ctx context.Context, src, dst string, p Plan) error {
	args := []string{"-y", "-i", src}
	switch p.TargetExt {
	case "m4a":
		args = append(args, "-vn", "-ac", "1", "-ar", "44100", "-c:a", "aac", "-b:a", "128k", "-movflags", "+faststart")
	case "wav":
		args = append(args, "-vn", "-ac", "1", "-ar", "16000")
	default:
		args = append(args, "-vn")
	}
	args = append(args, dst)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to normalize audio: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
