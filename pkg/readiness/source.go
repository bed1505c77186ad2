package readiness

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Line is one complete log line and the byte offset just past its terminator
type Line struct {
	Text string
	End  int64
}

// Source yields the complete lines appended to a log after a byte offset
type Source interface {
	ReadLines(offset int64) ([]Line, error)
}

// FileSource reads lines from a log file on disk. A file that does not exist
// yet has no lines. A trailing line without a newline is left for the next read.
type FileSource struct {
	Path string
}

// NewFileSource creates a source for the log file at path
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// ReadLines returns the complete lines starting at offset
func (s *FileSource) ReadLines(offset int64) ([]Line, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	// Truncated or rotated underneath us; wait until it grows past the cursor
	if info.Size() <= offset {
		return nil, nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	var lines []Line
	reader := bufio.NewReader(f)
	pos := offset
	for {
		text, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, nil
			}
			return lines, err
		}
		pos += int64(len(text))
		lines = append(lines, Line{
			Text: strings.TrimRight(text, "\r\n"),
			End:  pos,
		})
	}
}
