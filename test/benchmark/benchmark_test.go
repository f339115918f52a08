package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ales-api/internal/chain"
	"github.com/ales-api/internal/config"
	"github.com/ales-api/internal/mocks"
	"github.com/ales-api/internal/models"
	"github.com/ales-api/internal/retry"
	"github.com/ales-api/internal/service"
	"github.com/ales-api/internal/validation"
	"github.com/ales-api/internal/wallet"
	"github.com/rs/zerolog"
)

// seedArticles registers n articles whose bodies live in the mock store
func seedArticles(n int) (*mocks.MockConnector, *mocks.MockContentStore) {
	contract := mocks.NewMockContract()
	store := mocks.NewMockContentStore()
	body := "<p>" + strings.Repeat("lorem ipsum ", 50) + "</p>"

	for i := 0; i < n; i++ {
		res, _ := store.Put(context.Background(), models.Content{Data: []byte(body)})
		contract.AddArticle(models.Article{
			Title:       fmt.Sprintf("Article %d", i),
			ContentHash: res.CID,
			Price:       "0.01",
			IsFree:      i%2 == 0,
		})
	}
	return mocks.NewMockConnector(contract), store
}

func benchmarkList(b *testing.B, articles, concurrency int, latency time.Duration) {
	connector, store := seedArticles(articles)
	if latency > 0 {
		// Simulated RPC latency; the map is read-only from here on
		records := connector.Contract.Articles
		connector.Contract.FetchOneFunc = func(ctx context.Context, id uint64) (*models.Article, error) {
			time.Sleep(latency)
			a, ok := records[id]
			if !ok {
				return nil, models.ErrNotFound
			}
			cp := *a
			return &cp, nil
		}
	}

	conn := service.NewConnectionService(connector, retry.Fixed(1, 0), wallet.NewSession("bench", nil), zerolog.Nop())
	svc := service.NewArticleService(conn, store, config.FanoutConfig{Concurrency: concurrency, MaxArticles: uint64(articles)}, zerolog.Nop())

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := svc.List(context.Background()); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportMetric(float64(articles*b.N)/b.Elapsed().Seconds(), "articles/sec")
}

// BenchmarkList_Sequential benchmarks the article scan with no fan-out
func BenchmarkList_Sequential(b *testing.B) {
	benchmarkList(b, 200, 1, 0)
}

// BenchmarkList_Fanout benchmarks the article scan at the default cap
func BenchmarkList_Fanout(b *testing.B) {
	benchmarkList(b, 200, 8, 0)
}

// BenchmarkList_SlowRPC shows the fan-out hiding per-call latency
func BenchmarkList_SlowRPC(b *testing.B) {
	for _, c := range []int{1, 8, 32} {
		b.Run(fmt.Sprintf("concurrency=%d", c), func(b *testing.B) {
			benchmarkList(b, 50, c, time.Millisecond)
		})
	}
}

// BenchmarkValidation benchmarks draft validation
func BenchmarkValidation(b *testing.B) {
	validator := validation.NewValidator()

	draft := &models.Draft{
		Title:   "Benchmark article",
		Content: strings.Repeat("<p>paragraph</p>", 500),
		Price:   "0.015",
		Media: []string{
			mocks.MockCID(1),
			mocks.MockCID(2),
		},
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		validator.ValidateDraft(draft)
	}
}

// BenchmarkParseEther benchmarks decimal ETH to wei conversion
func BenchmarkParseEther(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := chain.ParseEther("1.234567890123456789"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkExcerpt benchmarks HTML stripping and truncation
func BenchmarkExcerpt(b *testing.B) {
	content := strings.Repeat("<p>Some <b>bold</b> and <i>italic</i> text.</p>", 200)

	b.ResetTimer()
	b.ReportAllocs()
	b.SetBytes(int64(len(content)))

	for i := 0; i < b.N; i++ {
		models.Excerpt(content, models.ExcerptLength)
	}
}
