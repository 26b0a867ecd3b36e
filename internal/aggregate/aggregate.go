// Package aggregate extracts the text corpus and source map that the
// sentiment stage consumes from a batch of unified items.
package aggregate

import (
	"strings"

	"github.com/FranksOps/pulse/internal/source"
)

// textKeys are the payload fields that may carry text on a successful video
// result. "nova" is the legacy key older provider deployments still emit.
var textKeys = []string{"analysis", "nova", "transcript"}

// ExtractTexts walks the batch and collects every non-empty text blob:
// article/page content, and the analysis and transcript fields of successful
// video results, including discover sub-results. It never fails; items with
// no extractable text contribute nothing to texts but still appear in
// sources, so sources always has exactly one entry per item.
func ExtractTexts(items []source.UnifiedItem) (texts []string, sources []source.SourceRef) {
	for _, it := range items {
		hasVideo := false

		addText(&texts, it.Content)
		if it.Video != nil && it.Video.OK {
			hasVideo = true
			addResultTexts(&texts, *it.Video)
		}
		for _, sub := range it.Videos {
			if sub.Video.OK {
				hasVideo = true
				addResultTexts(&texts, sub.Video)
			}
		}

		sources = append(sources, source.SourceRef{
			URL:      it.URL,
			Kind:     it.Kind,
			Title:    it.Title,
			HasVideo: hasVideo,
		})
	}
	return texts, sources
}

func addResultTexts(texts *[]string, res source.IngestionResult) {
	for _, key := range textKeys {
		addText(texts, res.Text(key))
	}
}

func addText(texts *[]string, s string) {
	if t := strings.TrimSpace(s); t != "" {
		*texts = append(*texts, t)
	}
}
