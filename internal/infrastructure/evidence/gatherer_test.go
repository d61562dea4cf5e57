package evidence

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	links  []string
	err    error
	called bool
}

func (f *fakeSearcher) SearchImages(context.Context, string, int) ([]string, error) {
	f.called = true
	return f.links, f.err
}

type fakeQuota struct {
	allowed bool
	err     error
}

func (f fakeQuota) Acquire(context.Context, int) (bool, error) {
	return f.allowed, f.err
}

type fakeVision struct {
	mu        sync.Mutex
	scores    map[string]float64 // по содержимому изображения
	described []byte
	embedded  []byte
}

func (f *fakeVision) ScoreImageText(_ context.Context, img []byte, _ string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.scores[string(img)]
	if !ok {
		return 0, errors.New("unknown image")
	}
	return s, nil
}

func (f *fakeVision) EmbedImage(_ context.Context, img []byte, region domain.Region) (domain.Vector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedded = img
	return domain.Vector{1, 2, 3}, nil
}

func (f *fakeVision) DescribeImage(_ context.Context, img []byte, mimeType, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.described = img
	return " 미니멀 블랙 코트 스타일 ", nil
}

func pngBytes(t *testing.T, w, h int, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: seed, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testCfg() *cfg.ExternalCfg {
	return &cfg.ExternalCfg{
		DailyQuota:      90,
		ResultCount:     10,
		MaxParallel:     5,
		DownloadTimeout: 2 * time.Second,
		MinImageSide:    250,
		ScoreThreshold:  0.18,
		PortraitBonus:   0.05,
		TopN:            4,
	}
}

func TestGatherRanksAndDescribesBest(t *testing.T) {
	portrait := pngBytes(t, 300, 400, 1)
	landscape := pngBytes(t, 400, 300, 2)
	weak := pngBytes(t, 400, 300, 3)
	small := pngBytes(t, 100, 100, 4)

	files := map[string][]byte{"/portrait": portrait, "/landscape": landscape, "/weak": weak, "/small": small}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	vision := &fakeVision{scores: map[string]float64{
		string(portrait):  0.15,
		string(landscape): 0.30,
		string(weak):      0.17,
		string(small):     0.90,
	}}
	searcher := &fakeSearcher{links: []string{
		srv.URL + "/portrait", srv.URL + "/landscape", srv.URL + "/weak", srv.URL + "/small", srv.URL + "/missing",
	}}
	g := NewGatherer(searcher, fakeQuota{allowed: true}, vision, srv.Client(), testCfg(), logger.NewNop())

	ev, err := g.Gather(context.Background(), domain.SearchIntent{Query: "제니 공항패션", ExternalQuery: "제니 공항 패션 스타일", External: true})

	require.NoError(t, err)
	require.Len(t, ev.Candidates, 2)
	assert.Equal(t, srv.URL+"/landscape", ev.Candidates[0].URL)
	assert.Equal(t, 67, ev.Candidates[0].DisplayScore)
	assert.Equal(t, srv.URL+"/portrait", ev.Candidates[1].URL)
	assert.InDelta(t, 0.20, ev.Candidates[1].Score, 1e-9)
	assert.Equal(t, 60, ev.Candidates[1].DisplayScore)

	assert.Equal(t, srv.URL+"/landscape", ev.ReferenceImageURL)
	assert.Equal(t, "제니 공항 패션 스타일", ev.Query)
	assert.Equal(t, "미니멀 블랙 코트 스타일", ev.Summary)
	assert.Equal(t, domain.Vector{1, 2, 3}, ev.VisualVector)
	assert.Equal(t, landscape, vision.described)
	assert.Equal(t, landscape, vision.embedded)
}

func TestGatherTiesKeepSearchOrder(t *testing.T) {
	paths := []string{"/a", "/b", "/c", "/d"}
	files := make(map[string][]byte, len(paths))
	delays := make(map[string]time.Duration, len(paths))
	scores := make(map[string]float64, len(paths))
	for i, p := range paths {
		data := pngBytes(t, 400, 300, uint8(10+i))
		files[p] = data
		// первая ссылка отвечает последней
		delays[p] = time.Duration(len(paths)-i) * 20 * time.Millisecond
		scores[string(data)] = 0.5
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delays[r.URL.Path])
		_, _ = w.Write(files[r.URL.Path])
	}))
	defer srv.Close()

	links := make([]string, 0, len(paths))
	for _, p := range paths {
		links = append(links, srv.URL+p)
	}

	for i := 0; i < 3; i++ {
		vision := &fakeVision{scores: scores}
		g := NewGatherer(&fakeSearcher{links: links}, fakeQuota{allowed: true}, vision, srv.Client(), testCfg(), logger.NewNop())

		ev, err := g.Gather(context.Background(), domain.SearchIntent{Query: "공항패션", ExternalQuery: "공항 패션", External: true})
		require.NoError(t, err)

		got := make([]string, 0, len(ev.Candidates))
		for _, c := range ev.Candidates {
			got = append(got, c.URL)
		}
		assert.Equal(t, links, got)
		assert.Equal(t, links[0], ev.ReferenceImageURL)
		assert.Equal(t, files["/a"], vision.embedded)
	}
}

func TestGatherQuotaExceeded(t *testing.T) {
	searcher := &fakeSearcher{}
	g := NewGatherer(searcher, fakeQuota{allowed: false}, &fakeVision{}, nil, testCfg(), logger.NewNop())

	_, err := g.Gather(context.Background(), domain.SearchIntent{Query: "트렌드"})

	assert.ErrorIs(t, err, e.ErrQuotaExceeded)
	assert.False(t, searcher.called)
}

func TestGatherQuotaStoreFailureDenies(t *testing.T) {
	g := NewGatherer(&fakeSearcher{}, fakeQuota{err: errors.New("redis down")}, &fakeVision{}, nil, testCfg(), logger.NewNop())

	_, err := g.Gather(context.Background(), domain.SearchIntent{Query: "트렌드"})

	assert.ErrorIs(t, err, e.ErrQuotaExceeded)
}

func TestGatherNoResults(t *testing.T) {
	g := NewGatherer(&fakeSearcher{}, fakeQuota{allowed: true}, &fakeVision{}, nil, testCfg(), logger.NewNop())

	_, err := g.Gather(context.Background(), domain.SearchIntent{Query: "트렌드"})

	assert.ErrorIs(t, err, e.ErrNoEvidence)
}

func TestGatherNothingUsable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not an image"))
	}))
	defer srv.Close()

	g := NewGatherer(&fakeSearcher{links: []string{srv.URL + "/a", srv.URL + "/b"}}, fakeQuota{allowed: true}, &fakeVision{}, srv.Client(), testCfg(), logger.NewNop())

	_, err := g.Gather(context.Background(), domain.SearchIntent{Query: "트렌드"})

	assert.ErrorIs(t, err, e.ErrNoEvidence)
}

func TestDisplayScore(t *testing.T) {
	tests := []struct {
		raw  float64
		want int
	}{
		{0.10, 0},
		{0.15, 60},
		{0.20, 60},
		{0.30, 67},
		{0.40, 99},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DisplayScore(tt.raw), tt.raw)
	}
}

func TestScoringContext(t *testing.T) {
	assert.Equal(t, "close up product shot", scoringContext("명품 가방 추천"))
	assert.Equal(t, "full body fashion style", scoringContext("공항 패션"))
}
