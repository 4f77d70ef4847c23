package review

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
)

var timestampPattern = regexp.MustCompile(`\[(\d+):(\d+)\]`)

// TimestampSeconds converts a "[MM:SS]" marker into seconds.
// Hour-scale or malformed markers yield 0.
func TimestampSeconds(timestamp string) int {
	m := timestampPattern.FindStringSubmatch(timestamp)
	if m == nil {
		return 0
	}
	minutes, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	seconds, err := strconv.Atoi(m[2])
	if err != nil {
		return 0
	}
	return minutes*60 + seconds
}

// VideoLink returns the watch URL for a YouTube video.
func VideoLink(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// HighlightLink returns a watch URL that starts playback at timestamp.
func HighlightLink(videoID, timestamp string) string {
	return fmt.Sprintf("%s&t=%ds", VideoLink(videoID), TimestampSeconds(timestamp))
}
