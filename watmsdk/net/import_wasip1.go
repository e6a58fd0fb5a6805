//go:build wasip1 || wasi

package net

import "unsafe"

//go:wasmimport env water_dial
//go:noescape
func _water_dial(networkIovs, networkIovsLen, addressIovs, addressIovsLen int32) (fd int32)

//go:wasmimport env water_dial_fixed
//go:noescape
func _water_dial_fixed() (fd int32)

//go:wasmimport env water_accept
//go:noescape
func _water_accept() (fd int32)

// iovec mirrors the two-word layout WASI preview1 uses for iovs: a
// pointer into guest linear memory followed by a byte count.
type iovec struct {
	ptr uint32
	len uint32
}

// iovecOf builds a single-entry iovec array pointing at s's bytes and
// returns its linear-memory address, ready to hand to a host import that
// expects (iovsPtr, iovsLen).
func iovecOf(s string) int32 {
	b := []byte(s)
	var base uintptr
	if len(b) > 0 {
		base = uintptr(unsafe.Pointer(&b[0]))
	}
	iov := &iovec{ptr: uint32(base), len: uint32(len(b))}
	return int32(uintptr(unsafe.Pointer(iov)))
}

func importDial(network, address string) int32 {
	return _water_dial(iovecOf(network), 1, iovecOf(address), 1)
}

func importDialFixed() int32 {
	return _water_dial_fixed()
}

func importAccept() int32 {
	return _water_accept()
}
