package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ales-api/internal/batch"
	"github.com/ales-api/internal/chain"
	"github.com/ales-api/internal/config"
	"github.com/ales-api/internal/ipfs"
	"github.com/ales-api/internal/models"
	"github.com/rs/zerolog"
)

// articleService is the concrete implementation of ArticleService
type articleService struct {
	conn        ConnectionService
	store       ipfs.Store
	concurrency int
	maxArticles uint64
	log         zerolog.Logger
}

// NewArticleService creates the article read service. concurrency caps
// both the record and the body fan-out; maxArticles caps how many of the
// newest ids one scan reads.
func NewArticleService(conn ConnectionService, store ipfs.Store, limits config.FanoutConfig, log zerolog.Logger) ArticleService {
	if limits.Concurrency < 1 {
		limits.Concurrency = 1
	}
	if limits.MaxArticles < 1 {
		limits.MaxArticles = 1
	}
	return &articleService{
		conn:        conn,
		store:       store,
		concurrency: limits.Concurrency,
		maxArticles: limits.MaxArticles,
		log:         log.With().Str("service", "article").Logger(),
	}
}

// List returns every article with its body, split into free and premium
func (s *articleService) List(ctx context.Context) (*models.ArticleList, error) {
	contract, err := s.conn.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	defer contract.Close()

	start := time.Now()
	records, err := s.fetchAll(ctx, contract)
	if err != nil {
		return nil, err
	}

	articles, err := s.attachContent(ctx, records)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int("count", len(articles)).
		Dur("duration", time.Since(start)).
		Msg("Articles listed")

	return models.NewArticleList(articles), nil
}

// Get returns one article and its body
func (s *articleService) Get(ctx context.Context, id uint64) (*models.ArticleWithContent, error) {
	contract, err := s.conn.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	defer contract.Close()

	article, err := contract.FetchOne(ctx, id)
	if err != nil {
		return nil, err
	}

	out := models.NewArticleWithContent(*article, s.store.Get(ctx, article.ContentHash))
	return &out, nil
}

// Profile returns the articles written by address
func (s *articleService) Profile(ctx context.Context, address string) (*models.Profile, error) {
	if address == "" {
		return nil, models.ErrWalletNotConnected
	}

	contract, err := s.conn.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	defer contract.Close()

	records, err := s.fetchAll(ctx, contract)
	if err != nil {
		return nil, err
	}

	// Filter before fetching bodies so only the author's content is read
	own := make([]*models.Article, 0)
	for _, a := range records {
		if a.AuthoredBy(address) {
			own = append(own, a)
		}
	}

	articles, err := s.attachContent(ctx, own)
	if err != nil {
		return nil, err
	}

	return &models.Profile{
		Address:      address,
		DisplayName:  models.ShortAddress(address),
		ArticleCount: len(articles),
		Articles:     articles,
	}, nil
}

// fetchAll reads ids 1..count, or only the newest maxArticles of them.
// Empty slots are skipped; any other read error fails the whole scan.
func (s *articleService) fetchAll(ctx context.Context, contract chain.Contract) ([]*models.Article, error) {
	count, err := contract.FetchCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read article count: %w", err)
	}
	if count == 0 {
		return []*models.Article{}, nil
	}

	first := uint64(1)
	if count > s.maxArticles {
		first = count - s.maxArticles + 1
		s.log.Warn().
			Uint64("count", count).
			Uint64("max_articles", s.maxArticles).
			Msg("Article count exceeds scan limit, reading newest only")
	}

	fetched, err := batch.Map(ctx, s.concurrency, batch.Range(first, count), func(ctx context.Context, id uint64) (*models.Article, error) {
		a, err := contract.FetchOne(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			s.log.Warn().Uint64("article_id", id).Msg("Article slot is empty, skipping")
			return nil, nil
		}
		return a, err
	})
	if err != nil {
		return nil, err
	}

	records := make([]*models.Article, 0, len(fetched))
	for _, a := range fetched {
		if a != nil {
			records = append(records, a)
		}
	}
	return records, nil
}

// attachContent fetches bodies concurrently. A failed body becomes the
// placeholder and never fails the batch.
func (s *articleService) attachContent(ctx context.Context, records []*models.Article) ([]models.ArticleWithContent, error) {
	return batch.Map(ctx, s.concurrency, records, func(ctx context.Context, a *models.Article) (models.ArticleWithContent, error) {
		return models.NewArticleWithContent(*a, s.store.Get(ctx, a.ContentHash)), nil
	})
}
