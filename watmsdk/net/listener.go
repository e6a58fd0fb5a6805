package net

import "github.com/refraction-networking/water/watmsdk/wasip1"

// Listener is the Transport Module's view of a place to accept
// connections from: it never owns a real socket, it just asks the host
// for the next one.
type Listener interface {
	Accept() (Conn, error)
}

var _ Listener = (*hostListener)(nil)

type hostListener struct{}

// NewHostListener returns a Listener that accepts by calling into the
// host's water_accept import.
func NewHostListener() Listener {
	return &hostListener{}
}

func (l *hostListener) Accept() (Conn, error) {
	fd, err := wasip1.DecodeWATERError(importAccept())
	if err != nil {
		return nil, err
	}
	return RebuildConn(fd), nil
}
