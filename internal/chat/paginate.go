package chat

import (
	"strings"
	"unicode/utf8"
)

// Clip truncates s to at most limit characters.
func Clip(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// Paginate packs lines into messages of at most limit characters.
//
// Lines are added greedily, joined with "\n", until the next line would push
// the chunk over the limit; the chunk is then flushed and a new one starts
// with that line. A line is never split across chunks, and whatever remains
// at the end is always flushed. Joining the chunks with "\n" gives back
// strings.Join(lines, "\n") exactly.
//
// A single line longer than limit ends up alone in its own chunk; Surface.Send
// clips it.
func Paginate(lines []string, limit int) []string {
	var (
		chunks  []string
		current strings.Builder
		size    int
		started bool
	)

	for _, line := range lines {
		n := utf8.RuneCountInString(line)
		if started && size+1+n > limit {
			chunks = append(chunks, current.String())
			current.Reset()
			size = 0
			started = false
		}
		if started {
			current.WriteByte('\n')
			size++
		}
		current.WriteString(line)
		size += n
		started = true
	}

	if started {
		chunks = append(chunks, current.String())
	}
	return chunks
}
