// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/ifs

package ifs

import "fmt"

// UCL status codes.
const (
	uclInputOverrun      = -201
	uclOutputOverrun     = -202
	uclLookbehindOverrun = -203
	uclInputNotConsumed  = -205
)

// nrv2bEndOffset marks the end of an NRV2B stream.
const nrv2bEndOffset = 0xffffffff

// nrv2bError carries a UCL status code.
type nrv2bError struct {
	status int
	at     int
}

func (e *nrv2bError) Error() string {
	var reason string
	switch e.status {
	case uclInputOverrun:
		reason = "input overrun"
	case uclOutputOverrun:
		reason = "output overrun"
	case uclLookbehindOverrun:
		reason = "lookbehind overrun"
	case uclInputNotConsumed:
		reason = "input not consumed"
	default:
		reason = "error"
	}

	return fmt.Sprintf("nrv2b: %s at input byte %d", reason, e.at)
}

// nrv2bBits reads the 8-bit flag stream interleaved with literal bytes.
type nrv2bBits struct {
	src []byte
	pos int
	bb  uint32
}

func (b *nrv2bBits) bit() (uint32, error) {
	if b.bb&0x7f != 0 {
		b.bb *= 2
	} else {
		if b.pos >= len(b.src) {
			return 0, &nrv2bError{status: uclInputOverrun, at: b.pos}
		}
		b.bb = uint32(b.src[b.pos])*2 + 1
		b.pos++
	}

	return (b.bb >> 8) & 1, nil
}

func (b *nrv2bBits) byte() (byte, error) {
	if b.pos >= len(b.src) {
		return 0, &nrv2bError{status: uclInputOverrun, at: b.pos}
	}
	c := b.src[b.pos]
	b.pos++
	return c, nil
}

// nrv2bDecode decodes one NRV2B (8-bit flag) stream from src into dst and
// returns the number of bytes produced. All input must be consumed.
func nrv2bDecode(dst, src []byte) (int, error) {
	in := nrv2bBits{src: src}
	olen := 0
	lastOff := uint32(1)

	for {
		// literal run
		for {
			flag, err := in.bit()
			if err != nil {
				return olen, err
			}
			if flag == 0 {
				break
			}

			c, err := in.byte()
			if err != nil {
				return olen, err
			}
			if olen >= len(dst) {
				return olen, &nrv2bError{status: uclOutputOverrun, at: in.pos}
			}
			dst[olen] = c
			olen++
		}

		off := uint32(1)
		for {
			flag, err := in.bit()
			if err != nil {
				return olen, err
			}
			off = off*2 + flag
			if in.pos >= len(src) {
				return olen, &nrv2bError{status: uclInputOverrun, at: in.pos}
			}
			if off > 0xffffff+3 {
				return olen, &nrv2bError{status: uclLookbehindOverrun, at: in.pos}
			}

			stop, err := in.bit()
			if err != nil {
				return olen, err
			}
			if stop == 1 {
				break
			}
		}

		if off == 2 {
			off = lastOff
		} else {
			c, err := in.byte()
			if err != nil {
				return olen, err
			}
			off = (off-3)*256 + uint32(c)
			if off == nrv2bEndOffset {
				break
			}
			off++
			lastOff = off
		}

		hi, err := in.bit()
		if err != nil {
			return olen, err
		}
		lo, err := in.bit()
		if err != nil {
			return olen, err
		}
		mlen := hi*2 + lo
		if mlen == 0 {
			mlen = 1
			for {
				flag, err := in.bit()
				if err != nil {
					return olen, err
				}
				mlen = mlen*2 + flag
				if in.pos >= len(src) {
					return olen, &nrv2bError{status: uclInputOverrun, at: in.pos}
				}
				if int(mlen) >= len(dst) {
					return olen, &nrv2bError{status: uclOutputOverrun, at: in.pos}
				}

				stop, err := in.bit()
				if err != nil {
					return olen, err
				}
				if stop == 1 {
					break
				}
			}
			mlen += 2
		}
		if off > 0xd00 {
			mlen++
		}

		// a match copies mlen+1 bytes and may overlap its own output
		if olen+int(mlen)+1 > len(dst) {
			return olen, &nrv2bError{status: uclOutputOverrun, at: in.pos}
		}
		if int(off) > olen {
			return olen, &nrv2bError{status: uclLookbehindOverrun, at: in.pos}
		}
		from := olen - int(off)
		for k := 0; k <= int(mlen); k++ {
			dst[olen] = dst[from+k]
			olen++
		}
	}

	if in.pos < len(src) {
		return olen, &nrv2bError{status: uclInputNotConsumed, at: in.pos}
	}

	return olen, nil
}
