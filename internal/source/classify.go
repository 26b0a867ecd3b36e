package source

import (
	"regexp"
	"strings"
)

var (
	youtubeRe      = regexp.MustCompile(`(youtube\.com/watch|youtu\.be/)`)
	videoFileExtRe = regexp.MustCompile(`\.(mp4|m3u8|webm|mov|mkv)(\?|$)`)
)

// Classify maps a URL to its ingestion Kind. It is deterministic and total:
// anything unrecognized, including the empty string, is an article. Precedence
// matters — tiktok.com/discover pages must win over plain tiktok.com.
func Classify(rawURL string) Kind {
	if rawURL == "" {
		return KindArticle
	}
	low := strings.ToLower(rawURL)
	switch {
	case strings.Contains(low, "tiktok.com") && strings.Contains(low, "discover"):
		return KindTikTokDiscover
	case strings.Contains(low, "tiktok.com"):
		return KindTikTokVideo
	case youtubeRe.MatchString(low):
		return KindYouTubeVideo
	case videoFileExtRe.MatchString(low):
		return KindGenericVideo
	}
	return KindArticle
}
