package render

import "strconv"

// Chunk wraps body as a single HTTP/1.1 chunked-transfer frame: hex length,
// CRLF, the bytes, CRLF. Every pre-rendered message variant is chunked
// exactly once at publish time and shared, unmodified, by every subscriber.
func Chunk(body []byte) []byte {
	hexLen := strconv.FormatInt(int64(len(body)), 16)
	out := make([]byte, 0, len(hexLen)+len(body)+4)
	out = append(out, hexLen...)
	out = append(out, '\r', '\n')
	out = append(out, body...)
	out = append(out, '\r', '\n')
	return out
}

// FinalChunk is the terminating zero-length chunk that ends a chunked
// response.
var FinalChunk = []byte("0\r\n\r\n")
