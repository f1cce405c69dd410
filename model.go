// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import (
	"io"
	"time"

	"github.com/apex/log"
	"github.com/woozymasta/pathrules"
)

// Internal binary layout and format limits.
const (
	// StartupHeaderSize is the fixed startup header size in bytes.
	StartupHeaderSize = 256
	// ImageHeaderSize is the image header size as stored (89 bytes of fields padded to 4).
	ImageHeaderSize = 92
	// AttrSize is the fixed size of the attribute prefix of every directory record.
	AttrSize = 24
	// TrailerSize is the size of both the startup and the image checksum trailer.
	TrailerSize = 4

	startupInfoWords  = 48
	segmentBufferSize = 64 * 1024 // fixed output capacity of one compressed segment
	fileEndSlack      = 8         // directory walk stops when a file ends this close to the stream end
)

// Startup header flags1 bits.
const (
	StartupFlagVirtual   uint8 = 0x01
	StartupFlagBigEndian uint8 = 0x02
	startupCompressMask  uint8 = 0x1c
)

// Image header flag bits.
const (
	ImageFlagBigEndian uint8 = 0x01 // header, trailer and dirents are big-endian
	ImageFlagReadOnly  uint8 = 0x02
	ImageFlagInoBits   uint8 = 0x04
)

// StartupHeader is the decoded loader stage header.
type StartupHeader struct {
	Signature    uint32     `json:"signature" yaml:"signature"`
	Version      uint16     `json:"version" yaml:"version"`
	Flags1       uint8      `json:"flags1" yaml:"flags1"`
	Flags2       uint8      `json:"flags2" yaml:"flags2"`
	HeaderSize   uint16     `json:"header_size" yaml:"header_size"`
	Machine      uint16     `json:"machine" yaml:"machine"`
	StartupVaddr uint32     `json:"startup_vaddr" yaml:"startup_vaddr"`
	PaddrBias    uint32     `json:"paddr_bias" yaml:"paddr_bias"`
	ImagePaddr   uint32     `json:"image_paddr" yaml:"image_paddr"`
	RAMPaddr     uint32     `json:"ram_paddr" yaml:"ram_paddr"`
	RAMSize      uint32     `json:"ram_size" yaml:"ram_size"`
	StartupSize  uint32     `json:"startup_size" yaml:"startup_size"`
	StoredSize   uint32     `json:"stored_size" yaml:"stored_size"`
	ImagefsPaddr uint32     `json:"imagefs_paddr" yaml:"imagefs_paddr"`
	ImagefsSize  uint32     `json:"imagefs_size" yaml:"imagefs_size"`
	PrebootSize  uint16     `json:"preboot_size" yaml:"preboot_size"`
	Zero0        uint16     `json:"-" yaml:"-"`
	Zero         [3]uint32  `json:"-" yaml:"-"`
	Info         [48]uint32 `json:"info" yaml:"info,flow"`
}

// BigEndian reports whether the loader stage was built for a big-endian target.
func (h *StartupHeader) BigEndian() bool { return h.Flags1&StartupFlagBigEndian != 0 }

// Virtual reports whether the startup runs with virtual addressing.
func (h *StartupHeader) Virtual() bool { return h.Flags1&StartupFlagVirtual != 0 }

// Compression returns the algorithm selected for the stored image tail.
func (h *StartupHeader) Compression() Compression {
	return Compression(h.Flags1 & startupCompressMask)
}

// CompressedSize returns the length of the compressed tail (stored minus startup minus trailer).
// It is zero when the header is inconsistent.
func (h *StartupHeader) CompressedSize() int64 {
	n := int64(h.StoredSize) - int64(h.StartupSize) - TrailerSize
	if n < 0 {
		return 0
	}

	return n
}

// ImageHeader is the decoded image filesystem header.
type ImageHeader struct {
	Signature  [7]byte    `json:"-" yaml:"-"`
	Flags      uint8      `json:"flags" yaml:"flags"`
	ImageSize  uint32     `json:"image_size" yaml:"image_size"`
	HdrDirSize uint32     `json:"hdr_dir_size" yaml:"hdr_dir_size"`
	DirOffset  uint32     `json:"dir_offset" yaml:"dir_offset"`
	BootIno    [4]uint32  `json:"boot_ino" yaml:"boot_ino,flow"`
	ScriptIno  uint32     `json:"script_ino" yaml:"script_ino"`
	ChainPaddr uint32     `json:"chain_paddr" yaml:"chain_paddr"`
	Spare      [10]uint32 `json:"-" yaml:"-"`
	MountFlags uint32     `json:"mountflags" yaml:"mountflags"`
	MountPoint byte       `json:"mountpoint" yaml:"mountpoint"`
}

// BigEndian reports whether directory records and trailer are big-endian.
func (h *ImageHeader) BigEndian() bool { return h.Flags&ImageFlagBigEndian != 0 }

// Attr is the fixed attribute prefix shared by every directory record.
type Attr struct {
	// Size is the full record length including this prefix.
	Size          uint16 `json:"size" yaml:"size"`
	ExtattrOffset uint16 `json:"extattr_offset,omitempty" yaml:"extattr_offset,omitempty"`
	Ino           uint32 `json:"ino" yaml:"ino"`
	Mode          Mode   `json:"mode" yaml:"mode"`
	Gid           uint32 `json:"gid" yaml:"gid"`
	UID           uint32 `json:"uid" yaml:"uid"`
	Mtime         uint32 `json:"mtime" yaml:"mtime"`
}

// ModTime returns Mtime as time value.
func (a Attr) ModTime() time.Time { return time.Unix(int64(a.Mtime), 0) }

// Kind tags the payload variant of a Record.
type Kind uint8

// Record variants.
const (
	KindUnknown Kind = iota
	KindFile
	KindDir
	KindSymlink
	KindDevice // character, block, FIFO and socket nodes
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	case KindDevice:
		return "device"
	default:
		return "unknown"
	}
}

// MarshalText encodes kind by name for manifests.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// FileData is the payload of a regular file record.
type FileData struct {
	// Offset is relative to the start of the image header.
	Offset uint32 `json:"offset" yaml:"offset"`
	Size   uint32 `json:"size" yaml:"size"`
}

// SymlinkData is the payload of a symlink record.
type SymlinkData struct {
	SymOffset uint16 `json:"sym_offset" yaml:"sym_offset"`
	SymSize   uint16 `json:"sym_size" yaml:"sym_size"`
	Target    string `json:"target" yaml:"target"`
}

// DeviceData is the payload of device, FIFO and socket records.
type DeviceData struct {
	Dev  uint32 `json:"dev" yaml:"dev"`
	RDev uint32 `json:"rdev" yaml:"rdev"`
}

// Record is one decoded directory entry. Only the payload member matching Kind is set.
type Record struct {
	Attr    Attr         `json:"attr" yaml:"attr"`
	Kind    Kind         `json:"kind" yaml:"kind"`
	Path    string       `json:"path" yaml:"path"`
	File    *FileData    `json:"file,omitempty" yaml:"file,omitempty"`
	Symlink *SymlinkData `json:"symlink,omitempty" yaml:"symlink,omitempty"`
	Device  *DeviceData  `json:"device,omitempty" yaml:"device,omitempty"`
	// Offset is the absolute offset of the record in the working stream.
	Offset int64 `json:"offset" yaml:"offset"`
}

// IsRoot reports whether record is the root directory entry.
func (r *Record) IsRoot() bool { return r.Kind == KindDir && r.Path == "" }

// Trailer is the image checksum word. It is reported, never verified.
type Trailer struct {
	Offset   int64  `json:"offset" yaml:"offset"`
	Checksum uint32 `json:"checksum" yaml:"checksum"`
}

// DecompressStats summarizes one working copy build.
type DecompressStats struct {
	Compression Compression `json:"compression" yaml:"compression"`
	// Segments is number of length-prefixed segments (zero for stream selectors).
	Segments int   `json:"segments,omitempty" yaml:"segments,omitempty"`
	BytesIn  int64 `json:"bytes_in" yaml:"bytes_in"`
	BytesOut int64 `json:"bytes_out" yaml:"bytes_out"`
}

// Headers bundles decoded headers with their absolute offsets.
type Headers struct {
	// Startup is nil for images without a loader stage.
	Startup       *StartupHeader `json:"startup,omitempty" yaml:"startup,omitempty"`
	StartupOffset int64          `json:"startup_offset" yaml:"startup_offset"`
	Image         ImageHeader    `json:"image" yaml:"image"`
	ImageOffset   int64          `json:"image_offset" yaml:"image_offset"`
}

// Layout describes the regions located in the input and working copy.
type Layout struct {
	// StartupOffset is -1 when there is no startup header.
	StartupOffset        int64 `json:"startup_offset" yaml:"startup_offset"`
	StartupPayloadOffset int64 `json:"startup_payload_offset,omitempty" yaml:"startup_payload_offset,omitempty"`
	StartupPayloadSize   int64 `json:"startup_payload_size,omitempty" yaml:"startup_payload_size,omitempty"`
	ImageOffset          int64 `json:"image_offset" yaml:"image_offset"`
	DirOffset            int64 `json:"dir_offset" yaml:"dir_offset"`
	DirSize              int64 `json:"dir_size" yaml:"dir_size"`
	InputSize            int64 `json:"input_size" yaml:"input_size"`
	WorkingSize          int64 `json:"working_size" yaml:"working_size"`
}

// ReaderOptions configures how an image is located and decompressed.
type ReaderOptions struct {
	// Logger receives diagnostics; defaults to log.Log.
	Logger log.Interface `json:"-" yaml:"-"`
	// Progress receives a copy of every byte written to the working copy when set.
	Progress io.Writer `json:"-" yaml:"-"`
	// ScratchDir holds the decompressed working copy; empty means os.TempDir.
	ScratchDir string `json:"scratch_dir,omitempty" yaml:"scratch_dir,omitempty"`
	// Verbose logs one line per decompressed segment at info level.
	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// Logger receives soft failures; defaults to log.Log.
	Logger log.Interface `json:"-" yaml:"-"`
	// OnRecord is called for every decoded record before it is applied.
	OnRecord func(rec Record) `json:"-" yaml:"-"`
	// OnRecordDone is called after one record is materialized.
	OnRecordDone func(rec Record, outputPath string) `json:"-" yaml:"-"`
	// Include defines ordered path rules selecting records to materialize.
	Include []pathrules.Rule `json:"include,omitempty" yaml:"include,omitempty"`
	// MatcherOptions control Include matching.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero" yaml:"matcher_options,omitempty"`
	// Clean removes and recreates the destination directory first.
	Clean bool `json:"clean,omitempty" yaml:"clean,omitempty"`
}

// DecompressOptions configures Decompress and BuildWorkingCopy.
type DecompressOptions struct {
	Logger log.Interface `json:"-" yaml:"-"`
	// BaseOffset is the absolute input offset of src, used in diagnostics.
	BaseOffset int64 `json:"-" yaml:"-"`
	Verbose    bool  `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// applyDefaults fills zero-valued reader options with defaults.
func (opts *ReaderOptions) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = log.Log
	}
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = log.Log
	}

	applyDefaultRuleAction(&opts.MatcherOptions, opts.Include)
}

// applyDefaults fills zero-valued decompress options with defaults.
func (opts *DecompressOptions) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = log.Log
	}
}
