package chunker

import (
	"regexp"
	"strings"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Candidate is a passage produced by chunking, before it is embedded and
// persisted as a chunk record.
type Candidate struct {
	Text          string
	Index         int
	StartSentence int
	EndSentence   int
	PageNumber    *int
	StartChar     *int
	EndChar       *int
	Metadata      map[string]interface{}
}

// Chunker splits cleaned text into overlapping passages. ChunkSize and
// ChunkOverlap are character counts; overlap >= size is accepted and simply
// produces degenerate chunking.
type Chunker struct {
	ChunkSize    int
	ChunkOverlap int
}

func New(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Chunker{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

// Page is one page of extracted text, chunked independently by ChunkPages.
type Page struct {
	Number int
	Text   string
}

// Strip everything outside letters, digits, common punctuation, brackets and
// quotes. Letter and number classes are Unicode-wide so accented and
// non-Latin text survives cleaning. Runs of whitespace collapse to a single
// space.
var (
	disallowedRe = regexp.MustCompile(`[^\p{L}\p{N}_\s.,;:!?\-()\[\]{}"']+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

func cleanText(text string) string {
	text = disallowedRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

type sentence struct {
	text  string
	start int // offset into the cleaned text
}

// splitSentences splits cleaned text on '.', '!' or '?' followed by
// whitespace. Empty sentences are dropped. Offsets refer to the cleaned text.
func splitSentences(text string) []sentence {
	var out []sentence
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 < len(text) && text[i+1] != ' ' {
			continue
		}
		s := strings.TrimSpace(text[start : i+1])
		if s != "" {
			out = append(out, sentence{text: s, start: start})
		}
		start = i + 2 // skip the boundary whitespace
		i++
	}
	if start < len(text) {
		s := strings.TrimSpace(text[start:])
		if s != "" {
			out = append(out, sentence{text: s, start: start})
		}
	}
	return out
}

// ChunkText splits text into chunks of at most ChunkSize characters, never
// splitting a sentence, seeding each new chunk with trailing sentences of the
// previous one up to ChunkOverlap characters. Caller metadata is copied onto
// every candidate verbatim and is applied last, so caller keys win over
// computed keys. Empty text yields no candidates.
func (c *Chunker) ChunkText(text string, metadata map[string]interface{}) []Candidate {
	cleaned := cleanText(text)
	if cleaned == "" {
		return nil
	}

	sentences := splitSentences(cleaned)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []Candidate
	var buffer []sentence
	bufferLen := 0
	chunkStart := 0

	seal := func(endSentence int) {
		first, last := buffer[0], buffer[len(buffer)-1]
		startChar := first.start
		endChar := last.start + len(last.text)
		texts := make([]string, len(buffer))
		for i, s := range buffer {
			texts[i] = s.text
		}
		chunks = append(chunks, Candidate{
			Text:          strings.Join(texts, " "),
			Index:         len(chunks),
			StartSentence: chunkStart,
			EndSentence:   endSentence,
			StartChar:     &startChar,
			EndChar:       &endChar,
			Metadata:      copyMetadata(metadata),
		})
	}

	for i, s := range sentences {
		joined := bufferLen + len(s.text)
		if bufferLen > 0 {
			joined++ // joining space
		}
		if joined > c.ChunkSize && bufferLen > 0 {
			seal(i - 1)
			overlap := c.overlapSentences(buffer)
			buffer = append([]sentence(nil), overlap...)
			bufferLen = joinedLen(buffer)
			chunkStart = i - len(overlap)
			if bufferLen > 0 {
				bufferLen++
			}
			bufferLen += len(s.text)
			buffer = append(buffer, s)
			continue
		}
		buffer = append(buffer, s)
		bufferLen = joined
	}

	if len(buffer) > 0 {
		seal(len(sentences) - 1)
	}

	return chunks
}

// overlapSentences takes trailing sentences of the sealed buffer, accumulating
// from the end until adding another would exceed ChunkOverlap characters.
func (c *Chunker) overlapSentences(buffer []sentence) []sentence {
	if c.ChunkOverlap <= 0 || joinedLen(buffer) <= c.ChunkOverlap {
		return nil
	}
	total := 0
	cut := len(buffer)
	for i := len(buffer) - 1; i >= 0; i-- {
		n := total + len(buffer[i].text)
		if total > 0 {
			n++
		}
		if n > c.ChunkOverlap {
			break
		}
		total = n
		cut = i
	}
	if cut == len(buffer) {
		return nil
	}
	return buffer[cut:]
}

func joinedLen(ss []sentence) int {
	n := 0
	for i, s := range ss {
		if i > 0 {
			n++
		}
		n += len(s.text)
	}
	return n
}

// ChunkPages applies ChunkText independently per page and tags the page
// number onto every resulting candidate. Candidate indices run across the
// whole document; sentence spans stay relative to their page.
func (c *Chunker) ChunkPages(pages []Page, metadata map[string]interface{}) []Candidate {
	var chunks []Candidate
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		pageChunks := c.ChunkText(page.Text, metadata)
		for i := range pageChunks {
			num := page.Number
			pageChunks[i].PageNumber = &num
			pageChunks[i].Index = len(chunks) + i
		}
		chunks = append(chunks, pageChunks...)
	}
	return chunks
}

// ChunkParagraphs splits on blank-line boundaries with no further size-based
// splitting.
func (c *Chunker) ChunkParagraphs(text string, metadata map[string]interface{}) []Candidate {
	var chunks []Candidate
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		chunks = append(chunks, Candidate{
			Text:     para,
			Index:    len(chunks),
			Metadata: copyMetadata(metadata),
		})
	}
	return chunks
}

func copyMetadata(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
