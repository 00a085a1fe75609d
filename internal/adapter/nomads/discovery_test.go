package nomads

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

const upstreamBase = "http://nomads.ncep.noaa.gov/dods/gfs_0p25_1hr"

func listingPage(hrefs ...string) string {
	page := "<html><body>"
	for _, h := range hrefs {
		page += fmt.Sprintf(`<a href="%s">link</a>`, h)
	}
	return page + "</body></html>"
}

// discoveryServer serves the dataset directory at the base path and one
// cycle listing per run-date directory.
func discoveryServer(t *testing.T, directory string, cycles map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/dods/gfs_0p25_1hr", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(directory))
	})
	for date, page := range cycles {
		page := page
		mux.HandleFunc("/dods/gfs_0p25_1hr/"+date, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(page))
		})
	}
	return httptest.NewServer(mux)
}

func TestDiscovery_LatestSource(t *testing.T) {
	directory := listingPage(
		upstreamBase+"/gfs20260829",
		upstreamBase+"/gfs20260831",
		upstreamBase+"/gfs20260830",
		"http://nomads.ncep.noaa.gov/dods/other_dataset", // ignored
		"/relative/link", // ignored
	)
	cycles := map[string]string{
		"gfs20260831": listingPage(
			upstreamBase+"/gfs20260831/gfs_0p25_1hr_00z.info",
			upstreamBase+"/gfs20260831/gfs_0p25_1hr_12z.info",
			upstreamBase+"/gfs20260831/gfs_0p25_1hr_06z.info",
			upstreamBase+"/gfs20260831/gfs_0p25_1hr_12z.das", // ignored
		),
	}
	server := discoveryServer(t, directory, cycles)
	defer server.Close()

	d := NewDiscovery(testClient(t, server), upstreamBase)
	source, err := d.LatestSource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, upstreamBase+"/gfs20260831/gfs_0p25_1hr_12z", source)
}

func TestDiscovery_NumericDateOrderBeatsStringOrder(t *testing.T) {
	// A ":80" host variant sorts above any plain URL as a string; the
	// numeric run-date key must still pick the newest date.
	directory := listingPage(
		"http://nomads.ncep.noaa.gov:80/dods/gfs_0p25_1hr/gfs20260830",
		upstreamBase+"/gfs20260831",
	)
	cycles := map[string]string{
		"gfs20260831": listingPage(upstreamBase + "/gfs20260831/gfs_0p25_1hr_00z.info"),
	}
	server := discoveryServer(t, directory, cycles)
	defer server.Close()

	d := NewDiscovery(testClient(t, server), upstreamBase)
	source, err := d.LatestSource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, upstreamBase+"/gfs20260831/gfs_0p25_1hr_00z", source)
}

func TestDiscovery_NoDateLinksIsStructuralMismatch(t *testing.T) {
	server := discoveryServer(t, listingPage("http://example.com/unrelated"), nil)
	defer server.Close()

	d := NewDiscovery(testClient(t, server), upstreamBase)
	_, err := d.LatestSource(context.Background())

	var mismatch *domain.StructuralMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Contains(t, mismatch.Detail, "run date")
}

func TestDiscovery_NoCycleLinksIsStructuralMismatch(t *testing.T) {
	directory := listingPage(upstreamBase + "/gfs20260831")
	cycles := map[string]string{
		"gfs20260831": listingPage(upstreamBase + "/gfs20260831/unexpected.txt"),
	}
	server := discoveryServer(t, directory, cycles)
	defer server.Close()

	d := NewDiscovery(testClient(t, server), upstreamBase)
	_, err := d.LatestSource(context.Background())

	var mismatch *domain.StructuralMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Contains(t, mismatch.Detail, "cycle")
}
