package container

import (
	"fmt"
	"io"
	"sync"
)

// Source adapts a seekable stream for random access and reports its size.
// Streams that already implement io.ReaderAt (os.File, bytes.Reader) are used
// directly; others are read through a locked Seek+Read pair.
func Source(r io.ReadSeeker) (io.ReaderAt, int64, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to determine stream size: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("failed to rewind stream: %w", err)
	}

	if ra, ok := r.(io.ReaderAt); ok {
		return ra, size, nil
	}
	return &seekReaderAt{r: r}, size, nil
}

type seekReaderAt struct {
	mu sync.Mutex
	r  io.ReadSeeker
}

func (s *seekReaderAt) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.r.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(s.r, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

// ReadPrefix reads up to n bytes from the start of src. A short container
// yields a short slice, not an error.
func ReadPrefix(src io.ReaderAt, size int64, n int) ([]byte, error) {
	n = int(min(int64(n), size))
	buf := make([]byte, n)
	read, err := src.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read container prefix: %w", err)
	}
	return buf[:read], nil
}
