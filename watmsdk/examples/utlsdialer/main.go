// Command utlsdialer is a minimal Transport Module built with watmsdk: it
// dials out wrapped in a uTLS Chrome ClientHello. Build it with tinygo
// targeting wasip1 and hand the resulting .wasm to water.NewDialerWithContext.
package main

import (
	"github.com/refraction-networking/water/watmsdk"
	"github.com/refraction-networking/water/watmsdk/transports"
)

func init() {
	watmsdk.BuildDialerWithWrappingTransport(&transports.UTLSClient{
		InsecureSkipVerify: true,
	})
}

func main() {}
