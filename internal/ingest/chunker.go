package ingest

import (
	"regexp"
	"strings"
)

// Chunker splits a source into smaller sources.
type Chunker interface {
	Chunk(src Source, parentID string) []Source
}

// SentenceChunker splits text into sentence windows with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+$`),
	}
}

// Chunk returns the windows of src in order. Each carries the parent's meta
// plus chunk_index and parent_id.
func (c *SentenceChunker) Chunk(src Source, parentID string) []Source {
	var sentences []string
	for _, s := range c.splitter.FindAllString(src.Content, -1) {
		s = strings.Join(strings.Fields(s), " ")
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return nil
	}

	var chunks []Source
	for i, idx := 0, 0; i < len(sentences); idx++ {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		meta := cloneMeta(src.Meta)
		meta["chunk_index"] = idx
		meta["parent_id"] = parentID
		chunks = append(chunks, Source{Content: strings.Join(sentences[i:end], " "), Meta: meta})
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return chunks
}
