package encode

import "errors"

var errScratchFull = errors.New("encoded frame exceeds scratch buffer")

// scratchWriter appends into a fixed-capacity buffer and refuses to grow it
type scratchWriter struct {
	buf      []byte
	overflow bool
}

func (w *scratchWriter) reset(buf []byte) {
	w.buf = buf[:0]
	w.overflow = false
}

func (w *scratchWriter) Write(p []byte) (int, error) {
	if len(w.buf)+len(p) > cap(w.buf) {
		w.overflow = true
		return 0, errScratchFull
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *scratchWriter) Bytes() []byte {
	return w.buf
}
