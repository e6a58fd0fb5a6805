package net

import (
	"github.com/refraction-networking/water/watmsdk/wasip1"
)

// Dial asks the host to dial network/address on the Transport Module's
// behalf, via the dynamic water_dial host import. The host decides
// whether to honor it at all -- see Config.DialedAddressValidator on the
// host side.
func Dial(network, address string) (Conn, error) {
	fd, err := wasip1.DecodeWATERError(importDial(network, address))
	if err != nil {
		return nil, err
	}
	return RebuildConn(fd), nil
}

// DialFixed asks the host to dial the single destination it was
// configured with up front, via the water_dial_fixed host import. Unlike
// Dial, the Transport Module does not get to pick the address.
func DialFixed() (Conn, error) {
	fd, err := wasip1.DecodeWATERError(importDialFixed())
	if err != nil {
		return nil, err
	}
	return RebuildConn(fd), nil
}
