package media

import (
	"bufio"
	"bytes"
	"io"
)

// Raw H.264 reader for byte streams with NALUs separated by Annex B start
// codes.
type NALUReader struct {
	scanner *bufio.Scanner
}

const (
	naluBufferInitialSize = 16 * 1024
	naluBufferMaximumSize = 4 * 1024 * 1024
)

func NewNALUReader(in io.Reader) *NALUReader {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, naluBufferInitialSize), naluBufferMaximumSize)
	scanner.Split(splitNALU)
	return &NALUReader{scanner: scanner}
}

// ReadNALU reads one whole NAL unit, without its start code. At the end of
// input it returns io.EOF.
//
// The returned slice is valid only until the next call to ReadNALU().
func (r *NALUReader) ReadNALU() ([]byte, error) {
	for r.scanner.Scan() {
		if nalu := r.scanner.Bytes(); len(nalu) > 0 {
			return nalu, nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

var h264StartCode = []byte{0, 0, 1}

// NAL unit types used to group units into frames. See ITU-T H.264 table 7-1.
const (
	naluTypeSlice    = 1
	naluTypeIDRSlice = 5
)

func NALUType(nalu []byte) int {
	if len(nalu) == 0 {
		return 0
	}
	return int(nalu[0] & 0x1f)
}

// IsVCL reports whether the NAL unit carries picture data.
func IsVCL(nalu []byte) bool {
	t := NALUType(nalu)
	return t >= naluTypeSlice && t <= naluTypeIDRSlice
}

func IsKeyFrame(nalu []byte) bool {
	return NALUType(nalu) == naluTypeIDRSlice
}

// AppendAnnexB appends a 4-byte start code followed by nalu.
func AppendAnnexB(dst, nalu []byte) []byte {
	dst = append(dst, 0, 0, 0, 1)
	return append(dst, nalu...)
}

// Splits NAL units on H.264 Annex B start codes.
func splitNALU(data []byte, atEOF bool) (advance int, nalu []byte, err error) {
	i := bytes.Index(data, h264StartCode)

	switch i {
	case -1:
		if atEOF && len(data) > 0 {
			// Trailing NALU with no start code after it.
			return len(data), data, nil
		}
		// No start code found. Wait for more data.
		advance = 0
	case 0:
		// 3-byte start code (0x000001) found at data[0]. Skip these 3 bytes.
		advance = 3
	case 1:
		if data[0] == 0x00 {
			// 4-byte start code (0x00000001) found at data[0]. Skip these 4 bytes.
			advance = 4
		} else {
			advance = i + 3
			nalu = data[0:i]
		}
	default:
		// Next start code found at index i.
		advance = i + 3
		if data[i-1] == 0x00 {
			// 4-byte start code
			nalu = data[0 : i-1]
		} else {
			// 3-byte start code
			nalu = data[0:i]
		}
	}
	return
}
