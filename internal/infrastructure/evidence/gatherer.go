// Package evidence собирает внешние изображения-образцы для запросов о трендах и знаменитостях.
package evidence

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	"github.com/DRSN-tech/fashion-search/pkg/logger"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

const maxImageBytes = 10 << 20

type ImageSearcher interface {
	SearchImages(ctx context.Context, query string, num int) ([]string, error)
}

type QuotaRepo interface {
	Acquire(ctx context.Context, limit int) (bool, error)
}

// Vision — модели, которыми оцениваются и описываются найденные изображения.
type Vision interface {
	ScoreImageText(ctx context.Context, image []byte, text string) (float64, error)
	EmbedImage(ctx context.Context, image []byte, region domain.Region) (domain.Vector, error)
	DescribeImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error)
}

type Gatherer struct {
	searcher ImageSearcher
	quota    QuotaRepo
	vision   Vision
	client   *http.Client
	cfg      *cfg.ExternalCfg
	logger   logger.Logger
}

func NewGatherer(searcher ImageSearcher, quota QuotaRepo, vision Vision, client *http.Client, cfg *cfg.ExternalCfg, logger logger.Logger) *Gatherer {
	if client == nil {
		client = http.DefaultClient
	}

	return &Gatherer{
		searcher: searcher,
		quota:    quota,
		vision:   vision,
		client:   client,
		cfg:      cfg,
		logger:   logger,
	}
}

type candidate struct {
	url      string
	data     []byte
	mimeType string
	score    float64
	pos      int // позиция в выдаче поиска
}

// Gather ищет изображения по запросу, оставляет лучшие и по первому из них
// строит описание и визуальный вектор. Ошибки: e.ErrQuotaExceeded, e.ErrNoEvidence.
func (g *Gatherer) Gather(ctx context.Context, si domain.SearchIntent) (*domain.ExternalEvidence, error) {
	const op = "Gatherer.Gather"

	allowed, err := g.quota.Acquire(ctx, g.cfg.DailyQuota)
	if err != nil {
		// без счётчика квоту не тратим
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrQuotaExceeded, err))
	}
	if !allowed {
		return nil, e.Wrap(op, e.ErrQuotaExceeded)
	}

	query := si.ExternalQuery
	if query == "" {
		query = si.Query
	}

	links, err := g.searcher.SearchImages(ctx, query, g.cfg.ResultCount)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrNoEvidence, err))
	}
	if len(links) == 0 {
		return nil, e.Wrap(op, e.ErrNoEvidence)
	}

	top := g.rank(ctx, links, query+" "+scoringContext(query))
	if len(top) == 0 {
		return nil, e.Wrap(op, e.ErrNoEvidence)
	}

	ev := &domain.ExternalEvidence{
		Query:             query,
		ReferenceImageURL: top[0].url,
		Candidates:        make([]domain.EvidenceImage, 0, len(top)),
	}
	for _, c := range top {
		ev.Candidates = append(ev.Candidates, domain.EvidenceImage{
			URL:          c.url,
			Score:        c.score,
			DisplayScore: DisplayScore(c.score),
		})
	}

	g.describeBest(ctx, si.Query, top[0], ev)

	g.logger.Infof("external evidence for %q: %d links, %d kept", query, len(links), len(top))
	return ev, nil
}

// rank скачивает и оценивает изображения не более чем в MaxParallel потоков.
func (g *Gatherer) rank(ctx context.Context, links []string, scoringText string) []candidate {
	var (
		mu     sync.Mutex
		scored = make([]candidate, 0, len(links))
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(g.cfg.MaxParallel, 1))

	for pos, link := range links {
		eg.Go(func() error {
			data, mimeType, portrait, err := g.download(egCtx, link)
			if err != nil {
				g.logger.Debugf("skip external image %s: %v", link, err)
				return nil
			}

			score, err := g.vision.ScoreImageText(egCtx, data, scoringText)
			if err != nil {
				g.logger.Debugf("score external image %s: %v", link, err)
				return nil
			}
			if portrait {
				score += g.cfg.PortraitBonus
			}
			if score <= g.cfg.ScoreThreshold {
				return nil
			}

			mu.Lock()
			scored = append(scored, candidate{url: link, data: data, mimeType: mimeType, score: score, pos: pos})
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	// при равной оценке выше то, что выше в выдаче поиска
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].pos < scored[j].pos
	})
	if len(scored) > g.cfg.TopN {
		scored = scored[:g.cfg.TopN]
	}

	return scored
}

// download скачивает изображение и отбрасывает те, у которых любая сторона меньше MinImageSide.
func (g *Gatherer) download(ctx context.Context, url string) (data []byte, mimeType string, portrait bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", false, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", false, err
	}

	conf, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", false, err
	}
	if conf.Width < g.cfg.MinImageSide || conf.Height < g.cfg.MinImageSide {
		return nil, "", false, fmt.Errorf("image too small: %dx%d", conf.Width, conf.Height)
	}

	return data, "image/" + format, conf.Height > conf.Width, nil
}

// describeBest дополняет evidence описанием и вектором лучшего изображения.
// Сбой любой из моделей не отменяет уже найденные кандидаты.
func (g *Gatherer) describeBest(ctx context.Context, userQuery string, best candidate, ev *domain.ExternalEvidence) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		summary, err := g.vision.DescribeImage(ctx, best.data, best.mimeType, summaryPrompt(userQuery))
		if err != nil {
			g.logger.Warnf("describe reference image: %v", err)
			return
		}
		ev.Summary = strings.TrimSpace(summary)
	}()

	go func() {
		defer wg.Done()
		vec, err := g.vision.EmbedImage(ctx, best.data, domain.RegionFull)
		if err != nil {
			g.logger.Warnf("embed reference image: %v", err)
			return
		}
		ev.VisualVector = vec
	}()

	wg.Wait()
}

// DisplayScore переводит сырую оценку в шкалу для показа: 0 ниже 0.15, иначе 60..99.
func DisplayScore(raw float64) int {
	if raw < 0.15 {
		return 0
	}

	normalized := (raw - 0.15) * 450
	return int(min(max(normalized, 60), 99))
}

var closeUpKeywords = []string{"가방", "신발", "지갑", "액세서리"}

// scoringContext уточняет текст для оценки: аксессуары сравниваются с предметной съёмкой.
func scoringContext(query string) string {
	for _, kw := range closeUpKeywords {
		if strings.Contains(query, kw) {
			return "close up product shot"
		}
	}

	return "full body fashion style"
}

func summaryPrompt(query string) string {
	return fmt.Sprintf(`당신은 정직한 패션 에디터입니다. 이미지에 시각적으로 보이는 것만 설명하세요.
사용자 질문: "%s" (참고용이며 이미지 내용이 우선입니다.)
1. 트렌드 무드: 한 줄.
2. 스타일링 포인트: 보이는 옷의 색상, 소재, 핏.
3. 추천 아이템: 사진 속 인물이 착용한 것과 유사한 아이템.
반드시 한국어로 작성하세요.`, query)
}
