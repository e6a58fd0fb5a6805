package transports

import (
	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"

	"github.com/refraction-networking/water/watmsdk"
	wnet "github.com/refraction-networking/water/watmsdk/net"
)

// type guard: BrotliTransport must implement watmsdk.WrappingTransport.
var _ watmsdk.WrappingTransport = (*BrotliTransport)(nil)

// BrotliTransport wraps a Conn so that everything written to it is
// brotli-compressed and everything read from it is decompressed, trading
// a little extra latency (brotli needs an explicit Flush per message
// boundary) for smaller on-the-wire payloads.
type BrotliTransport struct {
	// Quality is brotli's compression level, 0-11. Zero uses brotli's
	// own default.
	Quality int
}

func (b *BrotliTransport) Wrap(conn wnet.Conn) (wnet.Conn, error) {
	quality := b.Quality
	if quality == 0 {
		quality = brotli.DefaultCompression
	}

	return &brotliConn{
		Conn: conn,
		w:    brotli.NewWriterLevel(conn, quality),
		r:    brotli.NewReader(conn),
	}, nil
}

type brotliConn struct {
	wnet.Conn
	w *brotli.Writer
	r *brotli.Reader
}

func (c *brotliConn) Read(p []byte) (int, error) { return c.r.Read(p) }

func (c *brotliConn) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	if err != nil {
		return n, err
	}
	// flush so the peer can decode this message without waiting for more
	// data to fill brotli's internal block size.
	return n, c.w.Flush()
}

func (c *brotliConn) Close() error {
	_ = c.w.Close()
	return c.Conn.Close()
}

// type guard: ZstdTransport must implement watmsdk.WrappingTransport.
var _ watmsdk.WrappingTransport = (*ZstdTransport)(nil)

// ZstdTransport is an alternative to BrotliTransport using zstd, which
// trades brotli's better ratio for considerably cheaper CPU cost per
// message -- a better fit for a Transport Module relaying high-throughput
// traffic under wasip1's single-threaded execution.
type ZstdTransport struct {
	// Level selects zstd's speed/ratio tradeoff. Zero uses zstd's default.
	Level zstd.EncoderLevel
}

func (z *ZstdTransport) Wrap(conn wnet.Conn) (wnet.Conn, error) {
	level := z.Level
	if level == 0 {
		level = zstd.SpeedDefault
	}

	enc, err := zstd.NewWriter(conn, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(conn)
	if err != nil {
		enc.Close()
		return nil, err
	}

	return &zstdConn{Conn: conn, enc: enc, dec: dec}, nil
}

type zstdConn struct {
	wnet.Conn
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func (c *zstdConn) Read(p []byte) (int, error) { return c.dec.Read(p) }

func (c *zstdConn) Write(p []byte) (int, error) {
	n, err := c.enc.Write(p)
	if err != nil {
		return n, err
	}
	return n, c.enc.Flush()
}

func (c *zstdConn) Close() error {
	_ = c.enc.Close()
	c.dec.Close()
	return c.Conn.Close()
}
