package hashsig

import (
	"encoding/binary"
	"hash"
)

// SM3 (GB/T 32905-2016) has no stdlib or ecosystem implementation reachable
// from this corpus (see DESIGN.md); this is a compact, allocation-light
// implementation used only to satisfy spec.md's requirement that the
// algorithm be nameable and sizeable, not to sign production traffic.

const (
	sm3BlockSize  = 64
	sm3Size       = 32
	sm3ivA uint32 = 0x7380166f
	sm3ivB uint32 = 0x4914b2b9
	sm3ivC uint32 = 0x172442d7
	sm3ivD uint32 = 0xda8a0600
	sm3ivE uint32 = 0xa96f30bc
	sm3ivF uint32 = 0x163138aa
	sm3ivG uint32 = 0xe38dee4d
	sm3ivH uint32 = 0xb0fb0e4e
)

type sm3Digest struct {
	h   [8]uint32
	buf [sm3BlockSize]byte
	n   int
	len uint64
}

func newSM3() hash.Hash {
	d := &sm3Digest{}
	d.Reset()
	return d
}

func (d *sm3Digest) Reset() {
	d.h = [8]uint32{sm3ivA, sm3ivB, sm3ivC, sm3ivD, sm3ivE, sm3ivF, sm3ivG, sm3ivH}
	d.n = 0
	d.len = 0
}

func (d *sm3Digest) Size() int      { return sm3Size }
func (d *sm3Digest) BlockSize() int { return sm3BlockSize }

func (d *sm3Digest) Write(p []byte) (int, error) {
	total := len(p)
	d.len += uint64(total)
	if d.n > 0 {
		k := copy(d.buf[d.n:], p)
		d.n += k
		p = p[k:]
		if d.n == sm3BlockSize {
			d.block(d.buf[:])
			d.n = 0
		}
	}
	for len(p) >= sm3BlockSize {
		d.block(p[:sm3BlockSize])
		p = p[sm3BlockSize:]
	}
	if len(p) > 0 {
		d.n = copy(d.buf[:], p)
	}
	return total, nil
}

func (d *sm3Digest) Sum(in []byte) []byte {
	dCopy := *d
	bitLen := dCopy.len * 8
	var tmp [sm3BlockSize]byte
	tmp[0] = 0x80
	if dCopy.n < 56 {
		dCopy.Write(tmp[:56-dCopy.n])
	} else {
		dCopy.Write(tmp[:sm3BlockSize+56-dCopy.n])
	}
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], bitLen)
	dCopy.Write(lenBuf[:])
	if dCopy.n != 0 {
		panic("hashsig: sm3 invalid buffer state")
	}
	var out [sm3Size]byte
	for i, v := range dCopy.h {
		binary.BigEndian.PutUint32(out[i*4:], v)
	}
	return append(in, out[:]...)
}

func ff(j int, x, y, z uint32) uint32 {
	if j < 16 {
		return x ^ y ^ z
	}
	return (x & y) | (x & z) | (y & z)
}

func gg(j int, x, y, z uint32) uint32 {
	if j < 16 {
		return x ^ y ^ z
	}
	return (x & y) | (^x & z)
}

func leftRotate(x uint32, n uint) uint32 {
	return (x << (n % 32)) | (x >> (32 - n%32))
}

func (d *sm3Digest) block(p []byte) {
	var w [68]uint32
	var w1 [64]uint32
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint32(p[i*4:])
	}
	for j := 16; j < 68; j++ {
		x := w[j-16] ^ w[j-9] ^ leftRotate(w[j-3], 15)
		x = x ^ leftRotate(x, 15) ^ leftRotate(x, 23)
		w[j] = x ^ leftRotate(w[j-13], 7) ^ w[j-6]
	}
	for j := 0; j < 64; j++ {
		w1[j] = w[j] ^ w[j+4]
	}

	a, b, c, e, f, g := d.h[0], d.h[1], d.h[2], d.h[4], d.h[5], d.h[6]
	dd, h := d.h[3], d.h[7]

	for j := 0; j < 64; j++ {
		var t uint32 = 0x79cc4519
		if j >= 16 {
			t = 0x7a879d8a
		}
		ss1 := leftRotate(leftRotate(a, 12)+e+leftRotate(t, uint(j%32)), 7)
		ss2 := ss1 ^ leftRotate(a, 12)
		tt1 := ff(j, a, b, c) + dd + ss2 + w1[j]
		tt2 := gg(j, e, f, g) + h + ss1 + w[j]
		dd = c
		c = leftRotate(b, 9)
		b = a
		a = tt1
		h = g
		g = leftRotate(f, 19)
		f = e
		e = tt2 ^ leftRotate(tt2, 9) ^ leftRotate(tt2, 17)
	}

	d.h[0] ^= a
	d.h[1] ^= b
	d.h[2] ^= c
	d.h[3] ^= dd
	d.h[4] ^= e
	d.h[5] ^= f
	d.h[6] ^= g
	d.h[7] ^= h
}
