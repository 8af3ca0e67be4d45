package format

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Source is a line stream that can be read more than once. Seekable files
// are rewound in place; other streams are copied into a spill file while
// they are read.
type Source struct {
	name   string
	closer io.Closer
	seeker io.ReadSeeker
	spill  *spill
	br     *bufio.Reader
	size   int64
}

// OpenSource opens path, or standard input for "" and "-"
func OpenSource(path string) (*Source, error) {
	if path == "" || path == "-" {
		return NewSource(os.Stdin, "<stdin>"), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	s := NewSource(f, path)
	s.closer = f
	return s, nil
}

// NewSource wraps r. The caller keeps ownership of r unless it was opened
// through OpenSource.
func NewSource(r io.Reader, name string) *Source {
	s := &Source{name: name, size: -1}

	if f, ok := r.(*os.File); ok {
		if _, err := f.Seek(0, io.SeekCurrent); err == nil {
			s.seeker = f
			if info, err := f.Stat(); err == nil && info.Mode().IsRegular() {
				s.size = info.Size()
			}
		}
	} else if rs, ok := r.(io.ReadSeeker); ok {
		s.seeker = rs
		if end, err := rs.Seek(0, io.SeekEnd); err == nil {
			s.size = end
		}
		_, _ = rs.Seek(0, io.SeekStart)
	}

	if s.seeker != nil {
		s.br = bufio.NewReader(s.seeker)
	} else {
		s.spill = &spill{src: r}
		s.br = bufio.NewReader(s.spill)
	}
	return s
}

// Name returns the path or a display name of the stream
func (s *Source) Name() string { return s.name }

// Size returns the byte size, -1 when unknown
func (s *Source) Size() int64 { return s.size }

// ReadLine returns the next line without its terminator, io.EOF at the end
func (s *Source) ReadLine() (string, error) {
	line, err := s.br.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Rewind moves back to the first line
func (s *Source) Rewind() error {
	if s.seeker != nil {
		if _, err := s.seeker.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed to rewind %s: %w", s.name, err)
		}
		s.br.Reset(s.seeker)
		return nil
	}
	s.spill.readOff = 0
	s.br.Reset(s.spill)
	return nil
}

// Close releases the spill file and the underlying file
func (s *Source) Close() error {
	var err error
	if s.spill != nil {
		err = s.spill.close()
	}
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// spill replays what was read from src through a temporary file
type spill struct {
	f        *os.File
	src      io.Reader
	readOff  int64
	writeOff int64
}

func (s *spill) Read(p []byte) (int, error) {
	if s.readOff < s.writeOff {
		n := int64(len(p))
		if rest := s.writeOff - s.readOff; rest < n {
			n = rest
		}
		read, err := s.f.ReadAt(p[:n], s.readOff)
		s.readOff += int64(read)
		if err == io.EOF && read > 0 {
			err = nil
		}
		return read, err
	}

	n, err := s.src.Read(p)
	if n > 0 {
		if s.f == nil {
			f, ferr := os.CreateTemp("", "swift-spill-*")
			if ferr != nil {
				return 0, fmt.Errorf("failed to create spill file: %w", ferr)
			}
			s.f = f
		}
		if _, werr := s.f.WriteAt(p[:n], s.writeOff); werr != nil {
			return 0, fmt.Errorf("failed to spill input: %w", werr)
		}
		s.writeOff += int64(n)
		s.readOff += int64(n)
	}
	return n, err
}

func (s *spill) close() error {
	if s.f == nil {
		return nil
	}
	name := s.f.Name()
	err := s.f.Close()
	if rerr := os.Remove(name); err == nil {
		err = rerr
	}
	s.f = nil
	return err
}
