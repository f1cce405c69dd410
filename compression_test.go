package ifs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

func TestDecompressNoneCopiesTail(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	stats, err := Decompress(&out, bytes.NewReader([]byte{0xaa, 0xbb, 0xcc}), CompressNone, DecompressOptions{})
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out.Bytes(), []byte{0xaa, 0xbb, 0xcc}) {
		t.Fatalf("out=%x, want aabbcc", out.Bytes())
	}
	if stats.BytesIn != 3 || stats.BytesOut != 3 {
		t.Fatalf("stats=%+v, want 3/3", stats)
	}
}

func TestDecompressSegmentedTerminatorOnly(t *testing.T) {
	t.Parallel()

	for _, algo := range []Compression{CompressLZO, CompressUCL} {
		t.Run(algo.String(), func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			stats, err := Decompress(&out, bytes.NewReader([]byte{0x00, 0x00}), algo, DecompressOptions{})
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if out.Len() != 0 {
				t.Fatalf("out len=%d, want 0", out.Len())
			}
			if stats.Segments != 0 {
				t.Fatalf("Segments=%d, want 0", stats.Segments)
			}
		})
	}
}

func TestDecompressLZOSingleSegment(t *testing.T) {
	t.Parallel()

	src := []byte{0x00, 0x07, 0x14, 'a', 'b', 'c', 0x11, 0x00, 0x00, 0x00, 0x00}

	var out bytes.Buffer
	stats, err := Decompress(&out, bytes.NewReader(src), CompressLZO, DecompressOptions{})
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if out.String() != "abc" {
		t.Fatalf("out=%q, want %q", out.String(), "abc")
	}
	if stats.Segments != 1 || stats.BytesOut != 3 {
		t.Fatalf("stats=%+v, want 1 segment, 3 bytes", stats)
	}
}

func TestDecompressLZOMultipleSegments(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("0123456789abcdef"), 40)
	var out bytes.Buffer
	stats, err := Decompress(&out, bytes.NewReader(lzoLiteralSegments(data)), CompressLZO, DecompressOptions{})
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Fatalf("out len=%d, want %d", out.Len(), len(data))
	}
	if stats.Segments != 3 {
		t.Fatalf("Segments=%d, want 3", stats.Segments)
	}
}

func TestDecompressUCLSingleSegment(t *testing.T) {
	t.Parallel()

	var enc nrv2bTestEncoder
	for _, c := range []byte("abc") {
		enc.literal(c)
	}
	enc.match(3, 6)
	enc.end()
	seg := enc.bytes()

	src := binary.BigEndian.AppendUint16(nil, uint16(len(seg)))
	src = append(src, seg...)
	src = append(src, 0x00, 0x00)

	logger, mem := newTestLogger()
	var out bytes.Buffer
	stats, err := Decompress(&out, bytes.NewReader(src), CompressUCL, DecompressOptions{Logger: logger, Verbose: true})
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if out.String() != "abcabcabc" {
		t.Fatalf("out=%q, want %q", out.String(), "abcabcabc")
	}
	if stats.Segments != 1 {
		t.Fatalf("Segments=%d, want 1", stats.Segments)
	}
	if len(mem.Entries) != 1 || mem.Entries[0].Message != "segment" {
		t.Fatalf("log entries=%d, want one segment line", len(mem.Entries))
	}
}

func TestDecompressSegmentedBadSegment(t *testing.T) {
	t.Parallel()

	// a lone literal flag with no literal byte
	src := []byte{0x00, 0x01, 0x80, 0x00, 0x00}

	var out bytes.Buffer
	_, err := Decompress(&out, bytes.NewReader(src), CompressUCL, DecompressOptions{BaseOffset: 0x100})
	if !errors.Is(err, ErrDecompress) {
		t.Fatalf("err=%v, want ErrDecompress", err)
	}

	var segErr *SegmentError
	if !errors.As(err, &segErr) {
		t.Fatalf("err=%T, want *SegmentError", err)
	}
	if segErr.Offset != 0x100 || segErr.InLen != 1 || segErr.Status != uclInputOverrun {
		t.Fatalf("segment error=%+v, want offset 0x100, len 1, status %d", segErr, uclInputOverrun)
	}
}

func TestDecompressSegmentedTruncated(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		src  []byte
	}{
		{name: "missing terminator", src: lzoLiteralSegments([]byte("abc"))[:10]},
		{name: "short segment", src: []byte{0x00, 0x10, 0x01}},
		{name: "empty", src: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			_, err := Decompress(&out, bytes.NewReader(tc.src), CompressLZO, DecompressOptions{})
			if !errors.Is(err, ErrDecompress) {
				t.Fatalf("err=%v, want ErrDecompress", err)
			}
		})
	}
}

func TestDecompressUnsupported(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, err := Decompress(&out, bytes.NewReader(nil), Compression(0x10), DecompressOptions{})
	if !errors.Is(err, ErrUnsupportedCompression) {
		t.Fatalf("err=%v, want ErrUnsupportedCompression", err)
	}
	if Compression(0x1c).Valid() {
		t.Fatal("0x1c reported valid")
	}
}

func TestDecompressZlibContainers(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("imagefs payload "), 512)
	testCases := []struct {
		name     string
		compress func(t *testing.T, data []byte) []byte
	}{
		{name: "zlib", compress: func(t *testing.T, data []byte) []byte {
			var buf bytes.Buffer
			zw := zlib.NewWriter(&buf)
			if _, err := zw.Write(data); err != nil {
				t.Fatal(err)
			}
			if err := zw.Close(); err != nil {
				t.Fatal(err)
			}
			return buf.Bytes()
		}},
		{name: "gzip", compress: func(t *testing.T, data []byte) []byte {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			if _, err := zw.Write(data); err != nil {
				t.Fatal(err)
			}
			if err := zw.Close(); err != nil {
				t.Fatal(err)
			}
			return buf.Bytes()
		}},
		{name: "raw deflate", compress: func(t *testing.T, data []byte) []byte {
			var buf bytes.Buffer
			zw, err := flate.NewWriter(&buf, flate.BestSpeed)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := zw.Write(data); err != nil {
				t.Fatal(err)
			}
			if err := zw.Close(); err != nil {
				t.Fatal(err)
			}
			return buf.Bytes()
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			src := append(tc.compress(t, payload), 0xde, 0xad, 0xbe, 0xef)
			var out bytes.Buffer
			stats, err := Decompress(&out, bytes.NewReader(src), CompressZlib, DecompressOptions{})
			if err != nil {
				t.Fatalf("Decompress: %v", err)
			}
			if !bytes.Equal(out.Bytes(), payload) {
				t.Fatalf("out len=%d, want %d", out.Len(), len(payload))
			}
			if stats.BytesOut != int64(len(payload)) {
				t.Fatalf("BytesOut=%d, want %d", stats.BytesOut, len(payload))
			}
		})
	}
}

func TestDecompressZlibEmptyTail(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	stats, err := Decompress(&out, bytes.NewReader(nil), CompressZlib, DecompressOptions{})
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if out.Len() != 0 || stats.BytesOut != 0 {
		t.Fatalf("out len=%d BytesOut=%d, want 0", out.Len(), stats.BytesOut)
	}
}

func TestDecompressZlibCorrupt(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, err := Decompress(&out, bytes.NewReader([]byte{0x78, 0x9c, 0xff, 0xff, 0xff}), CompressZlib, DecompressOptions{})
	if !errors.Is(err, ErrDecompress) {
		t.Fatalf("err=%v, want ErrDecompress", err)
	}
}

func TestBuildWorkingCopyKeepsStartupPrefix(t *testing.T) {
	t.Parallel()

	tail := []byte("imagefs\x00tail")
	input := buildStartupImage(16, uint8(CompressLZO), 0x200, lzoLiteralSegments(tail))
	hdr, err := ReadStartupHeaderAt(bytes.NewReader(input), 16)
	if err != nil {
		t.Fatalf("ReadStartupHeaderAt: %v", err)
	}

	var out bytes.Buffer
	if _, err := BuildWorkingCopy(&out, bytes.NewReader(input), int64(len(input)), 16, hdr, DecompressOptions{}); err != nil {
		t.Fatalf("BuildWorkingCopy: %v", err)
	}

	want := append(append([]byte{}, input[:16+0x200]...), tail...)
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("working copy len=%d, want %d", out.Len(), len(want))
	}
}

func TestBuildWorkingCopyRejectsBadHeader(t *testing.T) {
	t.Parallel()

	input := buildStartupImage(0, 0x14, 0x100, nil)
	hdr, err := ReadStartupHeaderAt(bytes.NewReader(input), 0)
	if err != nil {
		t.Fatalf("ReadStartupHeaderAt: %v", err)
	}

	var out bytes.Buffer
	_, err = BuildWorkingCopy(&out, bytes.NewReader(input), int64(len(input)), 0, hdr, DecompressOptions{})
	if !errors.Is(err, ErrUnsupportedCompression) {
		t.Fatalf("err=%v, want ErrUnsupportedCompression", err)
	}
	if out.Len() != 0 {
		t.Fatalf("wrote %d bytes before rejecting selector", out.Len())
	}

	hdr.Flags1 = 0
	hdr.StartupSize = uint32(len(input) + 1)
	_, err = BuildWorkingCopy(&out, bytes.NewReader(input), int64(len(input)), 0, hdr, DecompressOptions{})
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("err=%v, want ErrInvalidFormat", err)
	}
}
