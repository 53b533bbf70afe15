package errorpage_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datawire/wfscan/pkg/errorpage"
	"github.com/datawire/wfscan/pkg/fetch"
)

func TestMatchNilPairNeverMatches(t *testing.T) {
	assert.False(t, errorpage.Match(nil, []byte("<html><div></div></html>")))
}

func TestComputeCountsTagAndUppercaseVariant(t *testing.T) {
	fp := errorpage.Compute([]byte("</div></DIV></a>"))
	assert.Equal(t, 2, fp["</div>"])
	assert.Equal(t, 1, fp["</a>"])
	assert.Equal(t, 0, fp["</tr>"])
	assert.Equal(t, 0, fp["</p>"])
}

func TestMatchWithinToleranceSucceeds(t *testing.T) {
	reference := errorpage.Pair{errorpage.Compute(
		[]byte("</div></div></div></div></div></div></div></div></div></div>"), // 10 </div>
	)}
	// 9 </div>: within Tolerance=0.9 of the reference's 10 (d=1, bound=10*0.1=1).
	near := []byte("</div></div></div></div></div></div></div></div></div>")
	assert.True(t, errorpage.Match(reference, near))
}

func TestMatchOutsideToleranceFails(t *testing.T) {
	reference := errorpage.Pair{errorpage.Compute(
		[]byte("</div></div></div></div></div></div></div></div></div></div>"), // 10 </div>
	)}
	// 5 </div>: d=5 exceeds the bound (10*0.1=1).
	far := []byte("</div></div></div></div></div>")
	assert.False(t, errorpage.Match(reference, far))
}

func TestMatchParkingPhraseOverridesTagMismatch(t *testing.T) {
	reference := errorpage.Pair{errorpage.Compute([]byte("</div></div>"))}
	// Wildly different tag profile (no tags at all), but the parking phrase
	// forces a match regardless.
	page := []byte("This site is not currently available.")
	assert.True(t, errorpage.Match(reference, page))
}

func TestIdentifyReturnsNilOnHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	pair := errorpage.Identify(context.Background(), fetch.NewClient(), srv.URL)
	assert.Nil(t, pair)
}

func TestIdentifyReturnsPairOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not found</html><div></div>")) //nolint:errcheck
	}))
	defer srv.Close()

	pair := errorpage.Identify(context.Background(), fetch.NewClient(), srv.URL)
	require.NotNil(t, pair)
	assert.Len(t, pair, 2)
}

// countingFailingTransport always fails and counts how many times it was
// invoked, so a test can confirm the exact attempt budget.
type countingFailingTransport struct {
	calls int32
}

func (c *countingFailingTransport) RoundTrip(_ *http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.calls, 1)
	return nil, errors.New("simulated transport failure")
}

func TestIdentifyMakesAtMostTwoAttemptsPerProbe(t *testing.T) {
	transport := &countingFailingTransport{}
	client := &fetch.Client{HTTPClient: &http.Client{Transport: transport}}

	pair := errorpage.Identify(context.Background(), client, "http://errorpage-test.invalid")
	assert.Nil(t, pair)
	// Identify bails out after the first suffix exhausts its attempts,
	// without trying the second suffix at all.
	assert.EqualValues(t, 2, atomic.LoadInt32(&transport.calls))
}
