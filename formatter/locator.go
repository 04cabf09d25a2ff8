package formatter

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/namespace"
	"github.com/dtce-ai/dtce-rag/schema"
)

// LocatorResolver turns internal storage locators into links on the
// document portal. Storage hosts and SAS tokens never leave it.
type LocatorResolver struct {
	base       string
	site       string
	containers map[string]bool
}

// NewLocatorResolver builds a resolver for the SuiteFiles portal.
func NewLocatorResolver(cfg config.SuiteFilesConfig) *LocatorResolver {
	r := &LocatorResolver{
		base:       strings.TrimRight(cfg.BaseURL, "/"),
		site:       "/" + strings.Trim(cfg.SitePath, "/"),
		containers: map[string]bool{},
	}
	for _, c := range cfg.Containers {
		r.containers[strings.ToLower(c)] = true
	}
	return r
}

// Resolve returns the portal link for doc, or the display path
// "<namespace>/<display name>" when the locator is not a known container.
func (r *LocatorResolver) Resolve(doc schema.RetrievedDocument) string {
	if link, ok := r.portalLink(doc.Locator); ok {
		return link
	}
	return displayPath(doc)
}

func (r *LocatorResolver) portalLink(locator string) (string, bool) {
	if r.base == "" || locator == "" {
		return "", false
	}
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	segments := pathSegments(u)
	if len(segments) < 2 || !r.containers[strings.ToLower(segments[0])] {
		return "", false
	}
	escaped := make([]string, 0, len(segments)-1)
	for _, s := range segments[1:] {
		escaped = append(escaped, url.PathEscape(s))
	}
	site := r.site
	if site == "/" {
		site = ""
	}
	return r.base + site + "/" + strings.Join(escaped, "/"), true
}

func displayPath(doc schema.RetrievedDocument) string {
	ns := strings.Trim(doc.NamespacePath, "/")
	if ns == "" {
		return doc.DisplayName
	}
	return ns + "/" + doc.DisplayName
}

// pathSegments returns the decoded, non-empty path segments of u.
func pathSegments(u *url.URL) []string {
	var out []string
	for _, s := range strings.Split(u.EscapedPath(), "/") {
		if s == "" {
			continue
		}
		if dec, err := url.PathUnescape(s); err == nil {
			s = dec
		}
		out = append(out, s)
	}
	return out
}

var (
	projectsSegment = regexp.MustCompile(`(?i)^projects?$`)
	sixDigits       = regexp.MustCompile(`^\d{6}$`)
	threeDigits     = regexp.MustCompile(`^\d{3}$`)
)

// ProjectTag derives a project tag from a locator only when a 6-digit
// project number segment follows a Projects segment, optionally with the
// matching year-code segment between them. Anything else yields nil.
func ProjectTag(locator string, k *namespace.Knowledge) *schema.ProjectTag {
	var segments []string
	if u, err := url.Parse(locator); err == nil && u.Scheme != "" {
		segments = pathSegments(u)
	} else {
		for _, s := range strings.Split(strings.ReplaceAll(locator, `\`, "/"), "/") {
			if s != "" {
				segments = append(segments, s)
			}
		}
	}
	for i, s := range segments {
		if !projectsSegment.MatchString(s) {
			continue
		}
		next := i + 1
		if next < len(segments) && threeDigits.MatchString(segments[next]) {
			next++
		}
		if next >= len(segments) || !sixDigits.MatchString(segments[next]) {
			continue
		}
		number := segments[next]
		if next == i+2 && segments[i+1] != number[:3] {
			continue
		}
		year, ok := k.CodeToYear(number[:3])
		if !ok {
			continue
		}
		return &schema.ProjectTag{Number: number, Year: strconv.Itoa(year)}
	}
	return nil
}
