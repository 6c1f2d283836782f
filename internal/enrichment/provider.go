// Package enrichment resolves an identifier into catalog and physical fields.
// The Mock provider stands in for SIMBAD, VizieR, MAST, and the NASA
// Exoplanet Archive until real catalog clients exist.
package enrichment

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/dharsanguruparan/skypulse/internal/model"
)

// Provider fetches enrichment for one identifier.
type Provider interface {
	Fetch(ctx context.Context, name string, idType model.IDType) (*model.Enrichment, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, name string, idType model.IDType) (*model.Enrichment, error)

func (f ProviderFunc) Fetch(ctx context.Context, name string, idType model.IDType) (*model.Enrichment, error) {
	return f(ctx, name, idType)
}

const (
	lightCurvePoints = 50
	transitStart     = 20
	transitEnd       = 30
	transitDepth     = 0.05
)

// Catalog names reported in every enrichment result.
const (
	SourceSIMBAD    = "SIMBAD"
	SourceVizieR    = "VizieR"
	SourceExoplanet = "NASA Exoplanet"
	SourceMAST      = "MAST"
)

var starSpectralTypes = []string{"G2V", "M4V", "K2III"}

// Mock returns randomized but well-formed enrichment after a simulated delay.
type Mock struct {
	minDelay, maxDelay time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// NewMock builds a Mock whose latency is uniform in [minDelay, maxDelay].
// A fixed seed makes the generated values reproducible.
func NewMock(minDelay, maxDelay time.Duration, seed int64) *Mock {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Mock{
		minDelay: minDelay,
		maxDelay: maxDelay,
		rnd:      rand.New(rand.NewSource(seed)),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Fetch waits for the simulated latency, then fabricates a record.
func (m *Mock) Fetch(ctx context.Context, name string, idType model.IDType) (*model.Enrichment, error) {
	delay := m.minDelay
	if span := m.maxDelay - m.minDelay; span > 0 {
		delay += time.Duration(m.float(0, float64(span)))
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	isStar := m.rnd.Float64() > 0.3
	ts := m.now()

	exoplanet := model.SourceSuccess
	objectType := "Exoplanet Host"
	spectral := "K5V"
	tags := []string{"Transiting Planet", "TESS Object"}
	if isStar {
		exoplanet = model.SourceNoData
		objectType = "Main Sequence Star"
		spectral = starSpectralTypes[m.rnd.Intn(len(starSpectralTypes))]
		tags = []string{"High Proper Motion", "Gaia DR3"}
	}

	return &model.Enrichment{
		PrimaryName:  model.Ptr(primaryName(name)),
		ObjectType:   model.Ptr(objectType),
		RA:           model.Ptr(m.between(0, 360)),
		Dec:          model.Ptr(m.between(-90, 90)),
		Magnitude:    model.Ptr(m.between(8, 16)),
		MagBand:      model.Ptr("V"),
		Distance:     model.Ptr(m.between(10, 1000)),
		SpectralType: model.Ptr(spectral),
		Temperature:  model.Ptr(m.between(3000, 8000)),
		Mass:         model.Ptr(m.between(0.1, 2.0)),
		Radius:       model.Ptr(m.between(0.1, 2.0)),
		Sources: []model.SourceResult{
			{SourceName: SourceSIMBAD, Status: model.SourceSuccess, Timestamp: &ts},
			{SourceName: SourceVizieR, Status: model.SourceSuccess, Timestamp: &ts},
			{SourceName: SourceExoplanet, Status: exoplanet, Timestamp: &ts},
			{SourceName: SourceMAST, Status: model.SourceSuccess, Timestamp: &ts},
		},
		Tags:           tags,
		LightCurveData: m.lightCurve(),
	}, nil
}

// lightCurve draws flat flux with ±1% noise and a transit dip. Caller holds mu.
func (m *Mock) lightCurve() []model.LightCurvePoint {
	points := make([]model.LightCurvePoint, lightCurvePoints)
	for i := range points {
		flux := 1 + (m.rnd.Float64()*0.02 - 0.01)
		if i > transitStart && i < transitEnd {
			flux -= transitDepth
		}
		points[i] = model.LightCurvePoint{Time: float64(i), Flux: flux}
	}
	return points
}

// between draws from [lo, hi). Caller holds mu.
func (m *Mock) between(lo, hi float64) float64 {
	return m.rnd.Float64()*(hi-lo) + lo
}

func (m *Mock) float(lo, hi float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.between(lo, hi)
}

func primaryName(input string) string {
	return strings.Replace(strings.ToUpper(input), "GAIA", "Gaia", 1)
}
