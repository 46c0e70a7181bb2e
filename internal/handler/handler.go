// Package handler answers HTTP/1.0 requests on a connection with files from a
// serving root.
package handler

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/f4ah6o/simplehttp-go/internal/config"
	"github.com/f4ah6o/simplehttp-go/internal/mimetype"
	"github.com/pkg/errors"
)

// indexFiles are served in place of a listing when present in a directory.
var indexFiles = []string{"index.html", "index.htm"}

// Handler serves files below a root directory. It holds no per-request state
// and is safe for concurrent use by multiple connections.
type Handler struct {
	root     string
	protocol string
	types    *mimetype.Table
	log      *AccessLog
	now      func() time.Time
}

// New returns a Handler serving cfg.Root. A nil types uses the built-in mime
// table and a nil log discards access log lines.
func New(cfg *config.Config, types *mimetype.Table, log *AccessLog) *Handler {
	if types == nil {
		types = mimetype.Default()
	}
	if log == nil {
		log = Discard()
	}
	return &Handler{
		root:     cfg.Root,
		protocol: cfg.Protocol,
		types:    types,
		log:      log,
		now:      time.Now,
	}
}

// conn is the state of one accepted connection.
type conn struct {
	h   *Handler
	rwc net.Conn
	br  *bufio.Reader
	bw  *bufio.Writer
}

// ServeConn handles requests on rwc until the client or the protocol ends the
// connection, then closes it. Failures stay local to the connection.
func (h *Handler) ServeConn(rwc net.Conn) {
	c := &conn{
		h:   h,
		rwc: rwc,
		br:  bufio.NewReader(rwc),
		bw:  bufio.NewWriter(rwc),
	}
	defer rwc.Close()
	defer func() {
		if err := recover(); err != nil {
			h.log.printf(rwc.RemoteAddr(), "panic serving connection: %v", err)
		}
	}()

	for {
		keep := c.serveOne()
		if err := c.bw.Flush(); err != nil {
			return
		}
		if !keep {
			return
		}
	}
}

// serveOne reads and answers one request. It reports whether the connection
// may carry another request.
func (c *conn) serveOne() bool {
	req, err := readRequest(c.br)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			c.sendError(req, se.Code, se.Message)
		}
		return false
	}

	keep := req.KeepAlive()
	switch req.Method {
	case MethodGet, MethodHead:
		return c.serveTarget(req, keep) && keep
	default:
		c.sendError(req, http.StatusNotImplemented, fmt.Sprintf("Unsupported method (%q)", req.Method))
		return false
	}
}

// serveTarget answers a GET or HEAD request. It reports whether a complete
// response was written without closing the connection.
func (c *conn) serveTarget(req *Request, keep bool) bool {
	p := translatePath(c.h.root, req.Target)
	fi, err := os.Stat(p)
	if err != nil {
		c.sendFileError(req, err)
		return false
	}

	if fi.IsDir() {
		reqPath, query := splitTarget(req.Target)
		if !strings.HasSuffix(reqPath, "/") {
			location := reqPath + "/"
			if query != "" {
				location += "?" + query
			}
			hdr := &responseHeader{}
			hdr.Set("Location", location)
			hdr.Set("Content-Length", "0")
			setConnection(hdr, keep)
			c.respond(req, http.StatusMovedPermanently, "", hdr, "-")
			return true
		}

		index, indexInfo, ok := findIndex(p)
		if !ok {
			return c.serveListing(req, p, keep)
		}
		p, fi = index, indexInfo
	}

	if !fi.Mode().IsRegular() {
		c.sendError(req, http.StatusNotFound, "File not found")
		return false
	}
	return c.serveFile(req, p, keep)
}

func (c *conn) serveFile(req *Request, p string, keep bool) bool {
	f, err := os.Open(p)
	if err != nil {
		c.sendFileError(req, err)
		return false
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		c.sendError(req, http.StatusInternalServerError, "Unable to stat file")
		return false
	}

	size := strconv.FormatInt(fi.Size(), 10)
	hdr := &responseHeader{}
	hdr.Set("Content-Type", c.h.types.TypeOf(p))
	hdr.Set("Content-Length", size)
	hdr.Set("Last-Modified", fi.ModTime().UTC().Format(http.TimeFormat))
	setConnection(hdr, keep)
	c.respond(req, http.StatusOK, "", hdr, size)

	if req.Method == MethodHead {
		return true
	}
	if _, err := io.CopyN(c.bw, f, fi.Size()); err != nil {
		// Headers are already sent; drop the connection.
		c.h.log.printf(c.rwc.RemoteAddr(), "error sending %s: %v", req.Target, err)
		return false
	}
	return true
}

func (c *conn) serveListing(req *Request, dir string, keep bool) bool {
	entries, err := readListing(dir)
	if err != nil {
		c.sendError(req, http.StatusNotFound, "No permission to list directory")
		return false
	}

	body := listingPage(urlPath(req.Target), entries)
	size := strconv.Itoa(len(body))
	hdr := &responseHeader{}
	hdr.Set("Content-Type", "text/html; charset=utf-8")
	hdr.Set("Content-Length", size)
	setConnection(hdr, keep)
	c.respond(req, http.StatusOK, "", hdr, size)

	if req.Method != MethodHead {
		c.bw.Write(body)
	}
	return true
}

// sendError answers with an HTML error page and marks the connection for closing.
func (c *conn) sendError(req *Request, code int, message string) {
	c.h.log.Error(c.rwc.RemoteAddr(), code, message)

	body := errorPage(code, message)
	hdr := &responseHeader{}
	hdr.Set("Content-Type", "text/html;charset=utf-8")
	hdr.Set("Content-Length", strconv.Itoa(len(body)))
	hdr.Set("Connection", "close")
	c.respond(req, code, message, hdr, "-")

	if req != nil && req.Method == MethodHead {
		return
	}
	if code < 200 || code == http.StatusNoContent || code == http.StatusNotModified {
		return
	}
	c.bw.Write(body)
}

func (c *conn) sendFileError(req *Request, err error) {
	code, message := statusFor(err)
	c.sendError(req, code, message)
}

// respond logs the response and writes its head.
func (c *conn) respond(req *Request, code int, reason string, hdr *responseHeader, size string) {
	line := ""
	if req != nil {
		line = req.Line
	}
	c.h.log.Request(c.rwc.RemoteAddr(), line, code, size)
	writeHead(c.bw, c.h.protocol, code, reason, hdr, c.h.now())
}

// statusFor maps a file system error to a response status.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, syscall.ENOTDIR),
		errors.Is(err, syscall.ENAMETOOLONG),
		errors.Is(err, syscall.EINVAL):
		return http.StatusNotFound, "File not found"
	case errors.Is(err, fs.ErrPermission):
		return http.StatusForbidden, "Permission denied"
	default:
		return http.StatusInternalServerError, "Internal error reading file"
	}
}

func findIndex(dir string) (string, os.FileInfo, bool) {
	for _, name := range indexFiles {
		p := filepath.Join(dir, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, fi, true
		}
	}
	return "", nil, false
}

func setConnection(hdr *responseHeader, keep bool) {
	if keep {
		hdr.Set("Connection", "keep-alive")
	}
}
