package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ales-api/internal/models"
	"github.com/ales-api/internal/validation"
	"github.com/rs/zerolog"
)

// paymentService is the concrete implementation of PaymentService
type paymentService struct {
	conn         ConnectionService
	validator    *validation.Validator
	writeTimeout time.Duration
	log          zerolog.Logger
}

// NewPaymentService creates the purchase and tip service
func NewPaymentService(conn ConnectionService, validator *validation.Validator, writeTimeout time.Duration, log zerolog.Logger) PaymentService {
	return &paymentService{
		conn:         conn,
		validator:    validator,
		writeTimeout: writeTimeout,
		log:          log.With().Str("service", "payment").Logger(),
	}
}

// Purchase pays the article's price, or zero for a free article. Repeated
// calls are not de-duplicated: each one submits its own transaction.
func (s *paymentService) Purchase(ctx context.Context, articleID uint64) (*models.PaymentResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	contract, err := s.conn.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	defer contract.Close()

	article, err := contract.FetchOne(ctx, articleID)
	if err != nil {
		return nil, err
	}

	amount := article.PaymentAmount()
	receipt, err := contract.Purchase(ctx, articleID, amount)
	if err != nil {
		return nil, fmt.Errorf("purchase of article %d: %w", articleID, err)
	}

	s.log.Info().
		Uint64("article_id", articleID).
		Str("amount", amount).
		Str("tx_hash", receipt.TxHash).
		Msg("Article purchased")

	return &models.PaymentResult{
		ArticleID: articleID,
		Amount:    amount,
		Receipt:   *receipt,
		Message:   "Article purchased successfully!",
	}, nil
}

// Tip sends amount to the article's author through the contract
func (s *paymentService) Tip(ctx context.Context, articleID uint64, amount string) (*models.PaymentResult, error) {
	if errs := s.validator.ValidateTipAmount(amount); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidAmount, validation.Messages(errs))
	}
	amount = strings.TrimSpace(amount)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	contract, err := s.conn.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	defer contract.Close()

	if _, err := contract.FetchOne(ctx, articleID); err != nil {
		return nil, err
	}

	receipt, err := contract.Tip(ctx, articleID, amount)
	if err != nil {
		return nil, fmt.Errorf("tip for article %d: %w", articleID, err)
	}

	s.log.Info().
		Uint64("article_id", articleID).
		Str("amount", amount).
		Str("tx_hash", receipt.TxHash).
		Msg("Tip sent")

	return &models.PaymentResult{
		ArticleID: articleID,
		Amount:    amount,
		Receipt:   *receipt,
		Message:   "Thanks for the coffee!",
	}, nil
}
