package handler

import (
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
)

// listingEntry is one row of a directory listing.
type listingEntry struct {
	// Name is the file name on disk, used as the sort key.
	Name string
	// Display is the visible text: directories end in "/", symlinks in "@".
	Display string
	// Href is the escaped, relative link target.
	Href string
}

// readListing reads dir and returns its entries ordered by case-folded name.
func readListing(dir string) ([]listingEntry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}

	fold := cases.Fold()
	entries := make([]listingEntry, 0, len(dirEntries))
	keys := make(map[string]string, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		// url.URL prefixes "./" when the first segment has a colon, so a name
		// never turns into a scheme.
		href := (&url.URL{Path: name}).String()
		e := listingEntry{Name: name, Display: name, Href: href}

		// Stat follows symlinks, so a link to a directory still links with a slash.
		if fi, err := os.Stat(filepath.Join(dir, name)); err == nil && fi.IsDir() {
			e.Display += "/"
			e.Href += "/"
		}
		if de.Type()&os.ModeSymlink != 0 {
			e.Display = name + "@"
		}
		entries = append(entries, e)
		keys[name] = fold.String(name)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return keys[entries[i].Name] < keys[entries[j].Name]
	})
	return entries, nil
}

// listingPage renders the HTML page for a directory listing of displayPath.
func listingPage(displayPath string, entries []listingEntry) []byte {
	title := "Directory listing for " + displayPath

	list := element(atom.Ul, nil)
	for _, e := range entries {
		list.AppendChild(element(atom.Li, nil,
			element(atom.A, []html.Attribute{{Key: "href", Val: e.Href}}, text(e.Display)),
		))
	}

	body := element(atom.Body, nil,
		element(atom.H1, nil, text(title)),
		element(atom.Hr, nil),
		list,
		element(atom.Hr, nil),
	)
	return renderPage(title, body)
}
