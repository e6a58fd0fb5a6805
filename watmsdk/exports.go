package watmsdk

import (
	"errors"
	"log"
	"os"
	"syscall"

	wnet "github.com/refraction-networking/water/watmsdk/net"
	"github.com/refraction-networking/water/watmsdk/wasip1"
)

// configPath is where v1 expects a Transport Module to find whatever
// configuration the host pushed down, replacing v0's pull_config import
// with a plain preopened file.
const configPath = "/conf/watm.cfg"

//export watm_init_v1
func watmInitV1() int32 {
	// the host calls watm_init_v1 before any role export has run, so the
	// transport of the first armed role (dialer, listener, relay) is used.
	ct := dialerState.configurable()
	if ct == nil {
		ct = listenerState.configurable()
	}
	if ct == nil {
		ct = relayState.configurable()
	}

	if ct != nil {
		config, err := os.ReadFile(configPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return wasip1.EncodeWATERError(syscall.EACCES)
			}
			// no config file preopened by the host, nothing to configure
		} else if err := ct.Configure(config); err != nil {
			log.Printf("watmsdk: init: Configure: %v", err)
			return wasip1.EncodeWATERError(syscall.EINVAL)
		}
	}

	return 0
}

//export watm_ctrlpipe_v1
func watmCtrlpipeV1(fd int32) int32 {
	cancelConn = wnet.RebuildConn(fd)
	if err := cancelConn.SetNonBlock(true); err != nil {
		log.Printf("watmsdk: ctrlpipe: SetNonBlock: %v", err)
		return wasip1.EncodeWATERError(err.(syscall.Errno))
	}
	return 0
}

//export watm_start_v1
func watmStartV1() int32 {
	if currentIdentity == identityUninitialized {
		log.Println("watmsdk: start: uninitialized")
		return wasip1.EncodeWATERError(syscall.ENOTCONN)
	}
	log.Printf("watmsdk: start: running as %s", identityNames[currentIdentity])
	return runWorker()
}
