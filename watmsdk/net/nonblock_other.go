//go:build !wasip1 && !wasi

package net

// setNonBlock is a no-op outside of the wasip1 target. It exists so that
// code importing this package type-checks on the developer's host
// platform; only the wasip1 build actually runs inside a Transport
// Module.
func setNonBlock(fd int32, nonblocking bool) error {
	return nil
}
