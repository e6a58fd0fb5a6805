package watmsdk

import (
	"log"
	"syscall"

	wnet "github.com/refraction-networking/water/watmsdk/net"
	"github.com/refraction-networking/water/watmsdk/wasip1"
)

type dialerRole struct {
	wt WrappingTransport
	dt DialingTransport
}

func (d *dialerRole) configurable() ConfigurableTransport {
	if d.wt != nil {
		if ct, ok := d.wt.(ConfigurableTransport); ok {
			return ct
		}
	}
	if d.dt != nil {
		if ct, ok := d.dt.(ConfigurableTransport); ok {
			return ct
		}
	}
	return nil
}

var dialerState dialerRole

// BuildDialerWithWrappingTransport arms the dialer role with a transport
// that wraps a Conn this SDK dials itself (either dynamically, via
// watm_dial_v1, or against a host-fixed destination via
// watm_dial_fixed_v1).
//
// Mutually exclusive with BuildDialerWithDialingTransport.
func BuildDialerWithWrappingTransport(wt WrappingTransport) {
	dialerState.wt = wt
	dialerState.dt = nil
}

// BuildDialerWithDialingTransport arms the dialer role with a transport
// that dials the remote address itself.
//
// Mutually exclusive with BuildDialerWithWrappingTransport.
func BuildDialerWithDialingTransport(dt DialingTransport) {
	dialerState.dt = dt
	dialerState.wt = nil
}

//export watm_dial_v1
func watmDialV1(callerConnFd int32) (remoteFd int32) {
	return doDial(callerConnFd, wnet.Dial)
}

//export watm_dial_fixed_v1
func watmDialFixedV1(callerConnFd int32) (remoteFd int32) {
	return doDial(callerConnFd, func(_, _ string) (wnet.Conn, error) {
		return wnet.DialFixed()
	})
}

func doDial(callerConnFd int32, dial func(network, address string) (wnet.Conn, error)) int32 {
	if currentIdentity != identityUninitialized {
		return wasip1.EncodeWATERError(syscall.EBUSY)
	}

	callerConn = wnet.RebuildConn(callerConnFd)
	if err := callerConn.SetNonBlock(true); err != nil {
		log.Printf("watmsdk: dial: callerConn.SetNonBlock: %v", err)
		return wasip1.EncodeWATERError(err.(syscall.Errno))
	}

	switch {
	case dialerState.wt != nil:
		raw, err := dial("", "")
		if err != nil {
			log.Printf("watmsdk: dial: dial: %v", err)
			return wasip1.EncodeWATERError(syscall.ENOTCONN)
		}

		remoteConn, err = dialerState.wt.Wrap(raw)
		if err != nil {
			log.Printf("watmsdk: dial: Wrap: %v", err)
			return wasip1.EncodeWATERError(syscall.EPROTO)
		}
	case dialerState.dt != nil:
		dialerState.dt.SetDialer(dial)
		conn, err := dialerState.dt.Dial("", "")
		if err != nil {
			log.Printf("watmsdk: dial: DialingTransport.Dial: %v", err)
			return wasip1.EncodeWATERError(syscall.ENOTCONN)
		}
		remoteConn = conn
	default:
		return wasip1.EncodeWATERError(syscall.EPERM)
	}

	currentIdentity = identityDialer
	return remoteConn.Fd()
}
