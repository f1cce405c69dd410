// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

// Mode holds the file type and permission bits of a directory record.
type Mode uint32

// File type and permission bits.
const (
	ModeTypeMask  Mode = 0o170_000
	ModeSocket    Mode = 0o140_000
	ModeSymlink   Mode = 0o120_000
	ModeFile      Mode = 0o100_000
	ModeBlockDev  Mode = 0o060_000
	ModeDir       Mode = 0o040_000
	ModeCharDev   Mode = 0o020_000
	ModeFIFO      Mode = 0o010_000
	ModePermsMask Mode = 0o007_777
)

// FileType returns only the type bits.
func (m Mode) FileType() Mode { return m & ModeTypeMask }

// Perm returns permission, setuid, setgid and sticky bits.
func (m Mode) Perm() Mode { return m & ModePermsMask }

// IsDir reports whether m describes a directory.
func (m Mode) IsDir() bool { return m.FileType() == ModeDir }

// IsRegular reports whether m describes a regular file.
func (m Mode) IsRegular() bool { return m.FileType() == ModeFile }

// IsSymlink reports whether m describes a symbolic link.
func (m Mode) IsSymlink() bool { return m.FileType() == ModeSymlink }

// TypeName returns the POSIX S_IF* name of the file type, or "S_IF?" for unknown bits.
func (m Mode) TypeName() string {
	switch m.FileType() {
	case ModeSocket:
		return "S_IFSOCK"
	case ModeSymlink:
		return "S_IFLNK"
	case ModeFile:
		return "S_IFREG"
	case ModeBlockDev:
		return "S_IFBLK"
	case ModeDir:
		return "S_IFDIR"
	case ModeCharDev:
		return "S_IFCHR"
	case ModeFIFO:
		return "S_IFIFO"
	default:
		return "S_IF?"
	}
}

// String formats mode like the first column of ls -l.
func (m Mode) String() string {
	s := []byte("?---------")
	switch m.FileType() {
	case ModeSocket:
		s[0] = 's'
	case ModeSymlink:
		s[0] = 'l'
	case ModeFile:
		s[0] = '-'
	case ModeBlockDev:
		s[0] = 'b'
	case ModeDir:
		s[0] = 'd'
	case ModeCharDev:
		s[0] = 'c'
	case ModeFIFO:
		s[0] = 'p'
	}

	const rwx = "rwxrwxrwx"
	for i := range 9 {
		if m&(1<<uint(8-i)) != 0 {
			s[1+i] = rwx[i]
		}
	}

	return string(s)
}
