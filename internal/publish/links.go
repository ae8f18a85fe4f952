package publish

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/starford/sitesmith/internal/storage"
)

// BrokenLink is an internal reference with no matching output file.
type BrokenLink struct {
	Page string `json:"page"`
	Ref  string `json:"ref"`
}

// BrokenLinksError is returned when a site links to files it does not have.
type BrokenLinksError struct {
	Links []BrokenLink
}

func (e *BrokenLinksError) Error() string {
	refs := make([]string, 0, min(len(e.Links), 5))
	for i, l := range e.Links {
		if i == 5 {
			break
		}
		refs = append(refs, l.Page+" -> "+l.Ref)
	}
	return fmt.Sprintf("publish: %d broken internal link(s): %s", len(e.Links), strings.Join(refs, ", "))
}

// CheckLinks parses every HTML file in store and reports hrefs and srcs that
// point inside the site but resolve to no file.
func CheckLinks(store storage.Provider) ([]BrokenLink, error) {
	files, err := store.List()
	if err != nil {
		return nil, err
	}
	exists := make(map[string]bool, len(files))
	for _, f := range files {
		exists[f.Path] = true
	}

	var broken []BrokenLink
	for _, f := range files {
		if !strings.HasSuffix(f.Path, ".html") {
			continue
		}
		data, err := store.Read(f.Path)
		if err != nil {
			return nil, err
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("publish: parse %s: %w", f.Path, err)
		}
		doc.Find("a[href], link[href], script[src], img[src]").Each(func(_ int, s *goquery.Selection) {
			ref, ok := s.Attr("href")
			if !ok {
				ref, _ = s.Attr("src")
			}
			target, internal := resolveRef(f.Path, ref)
			if internal && !found(exists, target) {
				broken = append(broken, BrokenLink{Page: f.Path, Ref: ref})
			}
		})
	}
	return broken, nil
}

// resolveRef resolves ref against the page it appears on. internal is false
// for external, fragment-only and non-navigational references.
func resolveRef(page, ref string) (target string, internal bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref, true
	}
	if u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}
	if strings.HasPrefix(u.Path, "/") {
		return strings.TrimPrefix(path.Clean(u.Path), "/"), true
	}
	return path.Join(path.Dir(page), u.Path), true
}

func found(exists map[string]bool, target string) bool {
	if strings.HasPrefix(target, "../") || target == ".." {
		return false
	}
	if target == "" || target == "." {
		return exists["index.html"]
	}
	return exists[target] || exists[target+".html"] || exists[path.Join(target, "index.html")]
}
