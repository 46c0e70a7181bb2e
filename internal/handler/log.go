package handler

import (
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/f4ah6o/simplehttp-go/internal/tty"
	"github.com/fatih/color"
)

// AccessLog writes one line per response in the common log style:
//
//	127.0.0.1 - - [19/Oct/2026 10:00:00] "GET / HTTP/1.0" 200 -
type AccessLog struct {
	logger *log.Logger
	now    func() time.Time

	ok, redirect, clientErr, serverErr *color.Color
}

// NewAccessLog returns an AccessLog writing to w. Status codes are colored
// when w is a terminal.
func NewAccessLog(w io.Writer) *AccessLog {
	return &AccessLog{
		logger:    log.New(w, "", 0),
		now:       time.Now,
		ok:        tty.Color(w, color.FgGreen),
		redirect:  tty.Color(w, color.FgCyan),
		clientErr: tty.Color(w, color.FgYellow),
		serverErr: tty.Color(w, color.FgRed),
	}
}

// Discard is an AccessLog that drops everything.
func Discard() *AccessLog {
	return NewAccessLog(io.Discard)
}

// Request logs a completed response. size is "-" when not known.
func (l *AccessLog) Request(remote net.Addr, line string, code int, size string) {
	l.printf(remote, "\"%s\" %s %s", line, l.colorFor(code).Sprint(code), size)
}

// Error logs an error response before it is sent.
func (l *AccessLog) Error(remote net.Addr, code int, message string) {
	l.printf(remote, "code %s, message %s", l.colorFor(code).Sprint(code), message)
}

func (l *AccessLog) printf(remote net.Addr, format string, args ...any) {
	host := "-"
	if remote != nil {
		host = remote.String()
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
	}
	stamp := l.now().Format("02/Jan/2006 15:04:05")
	l.logger.Printf("%s - - [%s] %s", host, stamp, fmt.Sprintf(format, args...))
}

func (l *AccessLog) colorFor(code int) *color.Color {
	switch {
	case code >= 500:
		return l.serverErr
	case code >= 400:
		return l.clientErr
	case code >= 300:
		return l.redirect
	default:
		return l.ok
	}
}
