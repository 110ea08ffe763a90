package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-scorecard/models"
	"github.com/fenilmodi00/ipo-scorecard/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileWithDefinitionList = `<html><body>
<section><dl>
  <dt>Industry:</dt><dd>Internet Content &amp; Information</dd>
  <dt>Sector:</dt><dd>
    Communication   Services
  </dd>
</dl></section>
</body></html>`

const profileWithSpans = `<html><body>
<div><span>Sector(s)</span><span>Technology</span></div>
</body></html>`

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (r *fakeRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	r.calls++
	return r.html, r.err
}

func newTestSectorService(t *testing.T, renderer PageRenderer, handler http.HandlerFunc) *SectorLookupService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewSectorLookupService(shared.ServiceConfig{
		BaseURL:            server.URL + "/",
		HTTPRequestTimeout: 2 * time.Second,
	}, renderer)
}

func servePage(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}
}

func TestExtractSector(t *testing.T) {
	sector, err := ExtractSectorFromHTML(profileWithDefinitionList)
	require.NoError(t, err)
	assert.Equal(t, "Communication Services", sector)

	sector, err = ExtractSectorFromHTML(profileWithSpans)
	require.NoError(t, err)
	assert.Equal(t, "Technology", sector)

	sector, err = ExtractSectorFromHTML(`<html><body><table><tr><th>SECTOR</th><td>Energy</td></tr></table></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "Energy", sector)

	sector, err = ExtractSectorFromHTML(`<html><body><p>Sector: Energy</p></body></html>`)
	require.NoError(t, err)
	assert.Empty(t, sector)
}

func TestLookupSectorScrapesProfilePage(t *testing.T) {
	renderer := &fakeRenderer{}
	service := newTestSectorService(t, renderer, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote/RDDT/profile", r.URL.Path)
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		servePage(profileWithDefinitionList)(w, r)
	})

	sector, err := service.LookupSector(context.Background(), "rddt")
	require.NoError(t, err)
	assert.Equal(t, "Communication Services", sector)
	assert.Equal(t, 0, renderer.calls)
}

func TestLookupSectorFallsBackToRenderer(t *testing.T) {
	renderer := &fakeRenderer{html: profileWithSpans}
	service := newTestSectorService(t, renderer, servePage(`<html><body><div id="app"></div></body></html>`))

	sector, err := service.LookupSector(context.Background(), "NEW")
	require.NoError(t, err)
	assert.Equal(t, "Technology", sector)
	assert.Equal(t, 1, renderer.calls)
}

func TestLookupSectorUnknown(t *testing.T) {
	t.Run("page missing and no renderer", func(t *testing.T) {
		service := newTestSectorService(t, nil, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		sector, err := service.LookupSector(context.Background(), "NONE")
		require.Error(t, err)
		assert.Equal(t, models.UnknownSector, sector)
		assert.True(t, shared.HasCategory(err, shared.ErrorCategoryNotFound))
	})

	t.Run("renderer fails", func(t *testing.T) {
		renderer := &fakeRenderer{err: errors.New("chrome not installed")}
		service := newTestSectorService(t, renderer, servePage(`<html><body></body></html>`))

		sector, err := service.LookupSector(context.Background(), "NONE")
		require.Error(t, err)
		assert.Equal(t, models.UnknownSector, sector)
		assert.ErrorContains(t, err, "sector lookup failed")
		assert.Equal(t, int64(1), service.serviceMetrics.GetCounter("unknown"))
	})
}

func TestProfileURL(t *testing.T) {
	service := NewSectorLookupService(shared.ServiceConfig{BaseURL: "https://finance.example.com/"}, nil)
	assert.Equal(t, "https://finance.example.com/quote/RDDT/profile", service.ProfileURL(" rddt "))
}
