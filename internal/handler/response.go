package handler

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ServerVersion is sent in the Server header of every response.
var ServerVersion = "SimpleHTTP/0.6 " + runtime.Version()

// StatusError is a per-request failure that is answered with an error page.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

// explanations holds the long description shown on error pages.
var explanations = map[int]string{
	http.StatusBadRequest:                  "Bad request syntax or unsupported method.",
	http.StatusForbidden:                   "Request forbidden -- authorization will not help.",
	http.StatusNotFound:                    "Nothing matches the given URI.",
	http.StatusRequestURITooLong:           "URI is too long.",
	http.StatusRequestHeaderFieldsTooLarge: "The server refused this request because the request header fields are too large.",
	http.StatusInternalServerError:         "Server got itself in trouble.",
	http.StatusNotImplemented:              "Server does not support this operation.",
	http.StatusHTTPVersionNotSupported:     "Cannot fulfill request.",
}

// responseHeader is an ordered list of header fields for one response.
type responseHeader struct {
	keys   []string
	values []string
}

func (h *responseHeader) Set(key, value string) {
	h.keys = append(h.keys, key)
	h.values = append(h.values, value)
}

// writeHead writes the status line, the common headers and the fields in h.
// reason replaces the standard reason phrase when non-empty.
func writeHead(w *bufio.Writer, proto string, code int, reason string, h *responseHeader, now time.Time) {
	if reason == "" {
		reason = http.StatusText(code)
	}
	reason = strings.NewReplacer("\r", " ", "\n", " ").Replace(reason)
	fmt.Fprintf(w, "%s %d %s\r\n", proto, code, reason)
	fmt.Fprintf(w, "Server: %s\r\n", ServerVersion)
	fmt.Fprintf(w, "Date: %s\r\n", now.UTC().Format(http.TimeFormat))
	if h != nil {
		for i, k := range h.keys {
			fmt.Fprintf(w, "%s: %s\r\n", k, h.values[i])
		}
	}
	w.WriteString("\r\n")
}

// errorPage renders the HTML body sent with error responses.
func errorPage(code int, message string) []byte {
	explain, ok := explanations[code]
	if !ok {
		explain = http.StatusText(code) + "."
	}
	body := element(atom.Body, nil,
		element(atom.H1, nil, text("Error response")),
		element(atom.P, nil, text("Error code: "+strconv.Itoa(code))),
		element(atom.P, nil, text("Message: "+message+".")),
		element(atom.P, nil, text("Error code explanation: "+strconv.Itoa(code)+" - "+explain)),
	)
	return renderPage("Error response", body)
}

// renderPage wraps body in a complete UTF-8 HTML document.
func renderPage(title string, body *html.Node) []byte {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(element(atom.Html, nil,
		element(atom.Head, nil,
			element(atom.Meta, []html.Attribute{{Key: "charset", Val: "utf-8"}}),
			element(atom.Title, nil, text(title)),
		),
		body,
	))

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		// bytes.Buffer writes do not fail.
		panic(err)
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

func element(a atom.Atom, attrs []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
