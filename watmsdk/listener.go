package watmsdk

import (
	"log"
	"syscall"

	wnet "github.com/refraction-networking/water/watmsdk/net"
	"github.com/refraction-networking/water/watmsdk/wasip1"
)

type listenerRole struct {
	wt WrappingTransport
	lt ListeningTransport
}

func (l *listenerRole) configurable() ConfigurableTransport {
	if l.wt != nil {
		if ct, ok := l.wt.(ConfigurableTransport); ok {
			return ct
		}
	}
	if l.lt != nil {
		if ct, ok := l.lt.(ConfigurableTransport); ok {
			return ct
		}
	}
	return nil
}

var listenerState listenerRole

// BuildListenerWithWrappingTransport arms the listener role with a
// transport that wraps the Conn accepted from the host via
// water_accept.
//
// Mutually exclusive with BuildListenerWithListeningTransport.
func BuildListenerWithWrappingTransport(wt WrappingTransport) {
	listenerState.wt = wt
	listenerState.lt = nil
}

// BuildListenerWithListeningTransport arms the listener role with a
// transport that accepts the connection itself.
//
// Mutually exclusive with BuildListenerWithWrappingTransport.
func BuildListenerWithListeningTransport(lt ListeningTransport) {
	listenerState.lt = lt
	listenerState.wt = nil
}

//export watm_accept_v1
func watmAcceptV1(callerConnFd int32) (sourceFd int32) {
	if currentIdentity != identityUninitialized {
		return wasip1.EncodeWATERError(syscall.EBUSY)
	}

	callerConn = wnet.RebuildConn(callerConnFd)
	if err := callerConn.SetNonBlock(true); err != nil {
		log.Printf("watmsdk: accept: callerConn.SetNonBlock: %v", err)
		return wasip1.EncodeWATERError(err.(syscall.Errno))
	}

	switch {
	case listenerState.wt != nil:
		raw, err := wnet.NewHostListener().Accept()
		if err != nil {
			log.Printf("watmsdk: accept: Accept: %v", err)
			return wasip1.EncodeWATERError(syscall.ENOTCONN)
		}

		sourceConn, err = listenerState.wt.Wrap(raw)
		if err != nil {
			log.Printf("watmsdk: accept: Wrap: %v", err)
			return wasip1.EncodeWATERError(syscall.EPROTO)
		}
	case listenerState.lt != nil:
		listenerState.lt.SetListener(wnet.NewHostListener())
		conn, err := listenerState.lt.Accept()
		if err != nil {
			log.Printf("watmsdk: accept: ListeningTransport.Accept: %v", err)
			return wasip1.EncodeWATERError(syscall.ENOTCONN)
		}
		sourceConn = conn
	default:
		return wasip1.EncodeWATERError(syscall.EPERM)
	}

	currentIdentity = identityListener
	return sourceConn.Fd()
}
