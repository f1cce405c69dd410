package ifs

import (
	"bytes"
	"context"
	"fmt"
	"testing"
)

const benchEntries = 512

func createBenchImage(b *testing.B) []byte {
	b.Helper()

	entries := []testEntry{{mode: ModeDir | 0o755}}
	for i := range benchEntries {
		entries = append(entries, testEntry{
			mode:  ModeFile | 0o644,
			path:  fmt.Sprintf("bin/tool%04d", i),
			data:  bytes.Repeat([]byte{byte(i)}, 256),
			mtime: uint32(i),
		})
	}

	return buildTestImage(b, testImageOptions{boundDir: true}, entries)
}

func BenchmarkWalker(b *testing.B) {
	img := createBenchImage(b)
	hdr, err := DecodeImageHeader(img)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		records, err := NewWalker(bytes.NewReader(img), int64(len(img)), 0, hdr).Collect()
		if err != nil {
			b.Fatal(err)
		}
		if len(records) != benchEntries+1 {
			b.Fatalf("len(records)=%d", len(records))
		}
	}
}

func BenchmarkScan(b *testing.B) {
	data := make([]byte, 8<<20)
	copy(data[len(data)-8:], "imagefs\x00")

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Scan(bytes.NewReader(data), int64(len(data)), 0, ImageSignature); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecompressUCL(b *testing.B) {
	data := bytes.Repeat([]byte("startup image payload "), 4096)
	src := uclLiteralSegments(data)

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var out bytes.Buffer
		if _, err := Decompress(&out, bytes.NewReader(src), CompressUCL, DecompressOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkExtract(b *testing.B) {
	path := writeTestFile(b, "bench.ifs", createBenchImage(b))
	r, err := Open(path)
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = r.Close() }()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := r.Extract(context.Background(), b.TempDir(), ExtractOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}
