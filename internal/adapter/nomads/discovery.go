package nomads

import (
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

var (
	// dateLinkRe matches a run-date directory link, e.g.
	// http://nomads.ncep.noaa.gov/dods/gfs_0p25_1hr/gfs20260831.
	dateLinkRe = regexp.MustCompile(`^https?://nomads\.ncep\.noaa\.gov(:80)?/dods/gfs_0p25_1hr/gfs\d{4}(0[1-9]|1[0-2])(0[1-9]|[12][0-9]|3[01])$`)

	// cycleLinkRe matches a cycle info link within a run-date directory, e.g.
	// .../gfs20260831/gfs_0p25_1hr_06z.info. Stripping the ".info" suffix
	// yields the run endpoint.
	cycleLinkRe = regexp.MustCompile(`^https?://nomads\.ncep\.noaa\.gov(:80)?/dods/gfs_0p25_1hr/gfs\d{4}(0[1-9]|1[0-2])(0[1-9]|[12][0-9]|3[01])/gfs_0p25_1hr_(00|06|12|18)z\.info$`)
)

// Discovery finds the latest upstream run by walking two directory
// listings: the dataset directory for the newest run date, then that date's
// directory for the newest cycle. It implements pipeline.SourceLocator.
type Discovery struct {
	client       *Client
	directoryURL string
}

// NewDiscovery creates a Discovery over the dataset directory listing.
func NewDiscovery(client *Client, directoryURL string) *Discovery {
	return &Discovery{client: client, directoryURL: directoryURL}
}

// LatestSource returns the endpoint of the newest available run. Zero
// matching links at either level is a domain.StructuralMismatchError: the
// page shape changed, and retrying will not fix that.
func (d *Discovery) LatestSource(ctx context.Context) (string, error) {
	// Run date: yyyymmdd, the last 8 characters of the link.
	latestDate, err := d.latestLink(ctx, d.directoryURL, dateLinkRe, "run date", func(href string) int {
		return mustAtoi(href[len(href)-8:])
	})
	if err != nil {
		return "", err
	}

	// Cycle hour: the two digits before "z.info".
	latestCycle, err := d.latestLink(ctx, latestDate, cycleLinkRe, "cycle", func(href string) int {
		return mustAtoi(href[len(href)-8 : len(href)-6])
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(latestCycle, ".info"), nil
}

// latestLink fetches a directory listing and returns the matching href
// with the greatest key.
func (d *Discovery) latestLink(ctx context.Context, url string, re *regexp.Regexp, what string, key func(string) int) (string, error) {
	body, err := d.client.get(ctx, url)
	if err != nil {
		return "", err
	}

	var latest string
	best := -1
	for _, href := range hrefs(body) {
		if !re.MatchString(href) {
			continue
		}
		if k := key(href); k > best {
			best = k
			latest = href
		}
	}
	if latest == "" {
		return "", &domain.StructuralMismatchError{
			Endpoint: url,
			Detail:   "found zero " + what + " links",
		}
	}
	return latest, nil
}

// mustAtoi parses digits already validated by the link regexps.
func mustAtoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

// hrefs collects every anchor href in an HTML document.
func hrefs(body []byte) []string {
	var out []string
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.Data != "a" {
				continue
			}
			for _, attr := range token.Attr {
				if attr.Key == "href" {
					out = append(out, attr.Val)
				}
			}
		}
	}
}
