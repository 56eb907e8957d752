package fieldextract

import "strings"

// splitChunks breaks text into at most maxChunks pieces of at most chunkSize
// characters, preferring paragraph boundaries so the LLM sees whole sections.
func splitChunks(text string, maxChunks, chunkSize int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChunks <= 0 {
		maxChunks = 3
	}
	if chunkSize <= 0 {
		chunkSize = 3000
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}

	for _, p := range paragraphs {
		// A paragraph that alone exceeds chunkSize gets hard-split.
		for len(p) > chunkSize {
			flush()
			chunks = append(chunks, strings.TrimSpace(p[:chunkSize]))
			p = p[chunkSize:]
		}
		if cur.Len()+len(p)+2 > chunkSize {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	flush()

	if len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}
	return chunks
}

// firstJSONObject returns the first balanced top-level JSON object in s,
// or "" when none exists. LLM responses often wrap JSON in prose or fences.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
