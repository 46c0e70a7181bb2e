package handler

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"
)

const (
	// MethodGet and MethodHead are the only methods the handler serves.
	MethodGet  = "GET"
	MethodHead = "HEAD"

	maxLineLength = 65536
	maxHeaders    = 100
)

// errNoRequest reports a connection that closed or sent a blank request line.
var errNoRequest = errors.New("no request")

// Request is one parsed HTTP request. It lives for a single request/response cycle.
type Request struct {
	// Line is the request line without its terminating CRLF.
	Line string
	// Method is the request method, e.g. "GET".
	Method string
	// Target is the request target as sent by the client.
	Target string
	// Proto is the version token, e.g. "HTTP/1.0".
	Proto      string
	ProtoMajor int
	ProtoMinor int
	Header     textproto.MIMEHeader
}

// KeepAlive reports whether the client asked to reuse the connection.
// The server speaks HTTP/1.0, so persistence needs an explicit keep-alive token.
func (r *Request) KeepAlive() bool {
	if r == nil || r.Header == nil {
		return false
	}
	values := r.Header.Values("Connection")
	if httpguts.HeaderValuesContainsToken(values, "close") {
		return false
	}
	return httpguts.HeaderValuesContainsToken(values, "keep-alive")
}

// readRequest reads a request line and its headers from br.
// The returned Request is non-nil whenever a request line was read, even if
// parsing then failed with a *StatusError, so that the failure can be logged.
func readRequest(br *bufio.Reader) (*Request, error) {
	raw, err := readLine(br)
	if err != nil {
		if errors.Is(err, errLineTooLong) {
			return nil, &StatusError{Code: 414, Message: "Request-URI Too Long"}
		}
		return nil, err
	}

	req := &Request{Line: strings.TrimRight(raw, "\r\n")}
	words := strings.Fields(req.Line)
	switch len(words) {
	case 0:
		return nil, errNoRequest
	case 3:
		req.Method, req.Target, req.Proto = words[0], words[1], words[2]
	default:
		return req, &StatusError{Code: 400, Message: fmt.Sprintf("Bad request syntax (%q)", req.Line)}
	}

	major, minor, ok := parseVersion(req.Proto)
	if !ok {
		return req, &StatusError{Code: 400, Message: fmt.Sprintf("Bad request version (%q)", req.Proto)}
	}
	if major >= 2 {
		return req, &StatusError{Code: 505, Message: fmt.Sprintf("Invalid HTTP version (%s)", req.Proto[len("HTTP/"):])}
	}
	req.ProtoMajor, req.ProtoMinor = major, minor

	block, err := readHeaderBlock(br)
	if err != nil {
		return req, err
	}
	header, err := textproto.NewReader(bufio.NewReader(bytes.NewReader(block))).ReadMIMEHeader()
	if err != nil {
		return req, &StatusError{Code: 400, Message: "Bad header"}
	}
	req.Header = header

	return req, nil
}

// readHeaderBlock reads header lines up to and including the blank line that
// ends them. Each line is capped at maxLineLength and at most maxHeaders lines
// are accepted, so a client cannot make the server buffer without bound.
func readHeaderBlock(br *bufio.Reader) ([]byte, error) {
	var block []byte
	for lines := 0; ; lines++ {
		line, err := readLine(br)
		switch {
		case errors.Is(err, errLineTooLong):
			return nil, &StatusError{Code: 431, Message: "Line too long"}
		case errors.Is(err, errNoRequest):
			return nil, errors.Wrap(io.ErrUnexpectedEOF, "read headers")
		case err != nil:
			return nil, err
		}
		block = append(block, line...)
		if line == "\r\n" || line == "\n" {
			return block, nil
		}
		if !strings.HasSuffix(line, "\n") {
			return nil, errors.Wrap(io.ErrUnexpectedEOF, "read headers")
		}
		if lines >= maxHeaders {
			return nil, &StatusError{Code: 431, Message: "Too many headers"}
		}
	}
}

var errLineTooLong = errors.New("line too long")

// readLine returns one line including its terminator. A final line without a
// terminator is returned as-is; an empty stream yields errNoRequest.
func readLine(br *bufio.Reader) (string, error) {
	var buf []byte
	for {
		chunk, err := br.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > maxLineLength {
			return "", errLineTooLong
		}
		switch {
		case err == nil:
			return string(buf), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(buf) == 0 {
				return "", errNoRequest
			}
			return string(buf), nil
		default:
			return "", errors.Wrap(err, "read request line")
		}
	}
}

// parseVersion parses "HTTP/<major>.<minor>".
func parseVersion(v string) (major, minor int, ok bool) {
	rest, found := strings.CutPrefix(v, "HTTP/")
	if !found {
		return 0, 0, false
	}
	majStr, minStr, found := strings.Cut(rest, ".")
	if !found || strings.Contains(minStr, ".") {
		return 0, 0, false
	}
	major, err := strconv.Atoi(majStr)
	if err != nil || major < 0 {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(minStr)
	if err != nil || minor < 0 {
		return 0, 0, false
	}
	return major, minor, true
}
