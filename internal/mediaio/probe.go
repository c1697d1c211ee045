// Copyright 2025 James Ross
package mediaio

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/reelvault/mediaserver/internal/actors"
)

// seriesPattern matches the common "SxxEyy" episode marker so Probe can fill
// TechnicalInfo.SeriesSlug without a separate lookup.
var seriesPattern = regexp.MustCompile(`(?i)^(.+?)[. _-]+s(\d{1,2})e(\d{1,3})`)

// FFProbe is a TechnicalProbe implementation that shells out to ffprobe,
// grounded on the ffprobe exec-and-parse-JSON pattern: run with a narrow
// -show_entries filter, decode into an anonymous struct, and fold the
// relevant fields into the public result type.
type FFProbe struct {
	Bin     string
	Timeout time.Duration
}

// NewFFProbe builds an ffprobe-backed TechnicalProbe. bin falling back to
// "ffprobe" (resolved via PATH) when unset.
func NewFFProbe(bin string, timeout time.Duration) *FFProbe {
	if bin == "" {
		bin = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FFProbe{Bin: bin, Timeout: timeout}
}

func (p *FFProbe) Probe(ctx context.Context, path string) (actors.TechnicalInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.Bin,
		"-v", "quiet",
		"-fflags", "+discardcorrupt",
		"-print_format", "json",
		"-show_entries", "stream=codec_type,codec_name,width,height:format=duration,format_name:format_tags=title",
		"-show_streams",
		"-show_format",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return actors.TechnicalInfo{}, fmt.Errorf("mediaio: ffprobe %s: %w", path, err)
	}

	var probed struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			CodecName string `json:"codec_name"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration   string `json:"duration"`
			FormatName string `json:"format_name"`
			Tags       struct {
				Title string `json:"title"`
			} `json:"tags"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &probed); err != nil {
		return actors.TechnicalInfo{}, fmt.Errorf("%w: mediaio: parse ffprobe output for %s: %v", actors.ErrCorruptFile, path, err)
	}

	title := strings.TrimSpace(probed.Format.Tags.Title)
	if title == "" {
		title = titleFromPath(path)
	}

	info := actors.TechnicalInfo{
		Container:  strings.SplitN(probed.Format.FormatName, ",", 2)[0],
		Title:      title,
		SeriesSlug: seriesSlug(path),
	}
	if d, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(d * float64(time.Second))
	}
	for _, s := range probed.Streams {
		if s.CodecType == "video" && info.Codec == "" {
			info.Codec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
		}
	}
	if info.Codec == "" && info.Container == "" {
		return actors.TechnicalInfo{}, fmt.Errorf("%w: %s has no decodable streams", actors.ErrCorruptFile, path)
	}
	return info, nil
}

// seriesSlug derives a series identity slug from the filename's title
// portion, dropping the episode marker so episodes of the same series
// collapse to the same key regardless of which episode probed first. The
// slug must match what metadata lookups derive from the resolved series
// title (see toMetadataResult), since it doubles as a dependency key.
func seriesSlug(path string) string {
	base := filepath.Base(path)
	m := seriesPattern.FindStringSubmatch(base)
	if m == nil {
		return ""
	}
	return slugify(cleanTitle(m[1]))
}

// titleFromPath builds a human-readable title fallback when ffprobe finds no
// format tag. Series files keep only the pre-episode-marker portion.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if m := seriesPattern.FindStringSubmatch(base); m != nil {
		return cleanTitle(m[1])
	}
	return cleanTitle(base)
}

// cleanTitle normalizes the dot/underscore/dash separators common in release
// filenames into spaces and collapses runs of whitespace.
func cleanTitle(s string) string {
	s = strings.NewReplacer(".", " ", "_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
