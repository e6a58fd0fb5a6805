package watmsdk

import (
	"log"
	"syscall"

	wnet "github.com/refraction-networking/water/watmsdk/net"
	"github.com/refraction-networking/water/watmsdk/wasip1"
)

// RelayWrapSelection picks which leg of a relay gets the WrappingTransport
// applied: the dialed (remote) leg, or the accepted (source) leg.
type RelayWrapSelection bool

const (
	RelayWrapRemote RelayWrapSelection = false
	RelayWrapSource RelayWrapSelection = true
)

type relayRole struct {
	wt    WrappingTransport
	which RelayWrapSelection
}

func (r *relayRole) configurable() ConfigurableTransport {
	if r.wt != nil {
		if ct, ok := r.wt.(ConfigurableTransport); ok {
			return ct
		}
	}
	return nil
}

var relayState relayRole

// BuildRelayWithWrappingTransport arms the relay role with a transport
// applied to whichever leg `which` names. The other leg is left raw, but
// still switched to non-blocking mode so the worker loop can poll it.
func BuildRelayWithWrappingTransport(wt WrappingTransport, which RelayWrapSelection) {
	relayState.wt = wt
	relayState.which = which
}

//export watm_associate_v1
func watmAssociateV1() int32 {
	if currentIdentity != identityUninitialized {
		return wasip1.EncodeWATERError(syscall.EBUSY)
	}

	if relayState.wt == nil {
		return wasip1.EncodeWATERError(syscall.EPERM)
	}

	src, err := wnet.NewHostListener().Accept()
	if err != nil {
		log.Printf("watmsdk: associate: Accept: %v", err)
		return wasip1.EncodeWATERError(syscall.ENOTCONN)
	}
	sourceConn = src

	dst, err := wnet.Dial("", "")
	if err != nil {
		log.Printf("watmsdk: associate: Dial: %v", err)
		return wasip1.EncodeWATERError(syscall.ENOTCONN)
	}
	remoteConn = dst

	if relayState.which == RelayWrapRemote {
		remoteConn, err = relayState.wt.Wrap(remoteConn)
		if err == nil {
			err = sourceConn.SetNonBlock(true)
		}
	} else {
		sourceConn, err = relayState.wt.Wrap(sourceConn)
		if err == nil {
			err = remoteConn.SetNonBlock(true)
		}
	}
	if err != nil {
		log.Printf("watmsdk: associate: Wrap: %v", err)
		return wasip1.EncodeWATERError(syscall.EPROTO)
	}

	currentIdentity = identityRelay
	return 0
}
