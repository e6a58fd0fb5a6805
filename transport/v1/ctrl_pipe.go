package v1

import "net"

// CtrlPipe is the out-of-band connection a v1 Core Instance uses to signal
// its guest worker loop; it carries no session data, only control bytes.
type CtrlPipe struct {
	net.Conn
}

// ctrlpipeExit is written by the host to tell the guest's worker loop to
// stop selecting on its pushed fds and return.
var ctrlpipeExit = []byte{0x00}

// WriteExit signals the guest worker loop to exit.
func (c *CtrlPipe) WriteExit() error {
	_, err := c.Conn.Write(ctrlpipeExit)
	return err
}
