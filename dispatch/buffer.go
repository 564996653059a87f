package dispatch

import (
	"bytes"

	"fusebind/errno"
)

// readRegion returns the region a read handler fills, allocating Size
// bytes when the transport did not supply one.
func readRegion(req *Request) []byte {
	if req.Buf == nil {
		n := req.Size
		if n < 0 {
			n = 0
		}
		req.Buf = make([]byte, n)
	}
	return req.Buf
}

// countResult checks a read or write count against the region the handler
// was given. Read data is copied out so the region can be released with
// the request.
func (d *Dispatcher) countResult(req *Request, n int) Response {
	if n > len(req.Buf) {
		d.violation(req, ViolationCountOutOfRange,
			"handler reported %d bytes for a %d byte region", n, len(req.Buf))
		return Response{Status: int(errno.Generic)}
	}

	resp := Response{Status: n}
	if req.Op == OpRead && n > 0 {
		resp.Data = bytes.Clone(req.Buf[:n])
	}
	return resp
}

// xattrResult applies the size negotiation of getxattr and listxattr. A
// zero buffer size asks for the required size; a smaller nonzero size is
// ERANGE.
func xattrResult(req *Request, value []byte) Response {
	need := len(value)
	if req.Size > 0 && req.Size < int64(need) {
		return Response{Status: int(errno.ERANGE)}
	}
	data := bytes.Clone(value)
	if data == nil {
		data = []byte{}
	}
	return Response{Status: need, Data: data}
}

// encodeNames packs xattr names as consecutive NUL-terminated strings.
func encodeNames(names []string) []byte {
	n := 0
	for _, s := range names {
		n += len(s) + 1
	}
	b := make([]byte, 0, n)
	for _, s := range names {
		b = append(b, s...)
		b = append(b, 0)
	}
	return b
}
