package emit

import (
	"bytes"
	"regexp"
	"strconv"

	"pipegen/internal/frame"
)

var markerLine = regexp.MustCompile(`^\s*// frame (\d+): `)

// SourceMap maps lines of a rendered unit back to the frames that produced them.
type SourceMap struct {
	lines  []frame.ID // index 0 is line 1
	labels map[frame.ID]string
}

// Frame returns the frame that produced line (1-based).
func (s *SourceMap) Frame(line int) (frame.ID, string, bool) {
	if s == nil || line < 1 || line > len(s.lines) {
		return frame.NoFrame, "", false
	}
	id := s.lines[line-1]
	if id == frame.NoFrame {
		return frame.NoFrame, "", false
	}
	return id, s.labels[id], true
}

// Lines returns the number of mapped lines.
func (s *SourceMap) Lines() int {
	if s == nil {
		return 0
	}
	return len(s.lines)
}

// buildSourceMap attributes every line to the last marker above it. Outside
// debug mode the marker lines themselves are removed.
func buildSourceMap(src []byte, labels map[frame.ID]string, debug bool) ([]byte, *SourceMap) {
	smap := &SourceMap{labels: labels}
	var out bytes.Buffer
	current := frame.NoFrame
	depth := 0
	markDepth := 0
	for line := range bytes.Lines(src) {
		line = bytes.TrimSuffix(line, []byte("\n"))
		if m := markerLine.FindSubmatch(line); m != nil {
			if n, err := strconv.ParseUint(string(m[1]), 10, 32); err == nil {
				current = frame.ID(n)
				markDepth = depth
			}
			if !debug {
				continue
			}
		}
		depth += bytes.Count(line, []byte("{")) - bytes.Count(line, []byte("}"))
		smap.lines = append(smap.lines, current)
		out.Write(line)
		out.WriteByte('\n')
		if depth < markDepth {
			// left the block the marker was written in
			current = frame.NoFrame
			markDepth = depth
		}
	}
	return out.Bytes(), smap
}
