package product

import (
	"context"
	"sort"
	"strings"

	"barboeuf-be/internal/logger"

	"go.uber.org/zap"
)

type Service interface {
	ListAvailable(ctx context.Context, lang string) ([]ListedProduct, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// ListAvailable returns in-stock active products with names in the requested
// language, grouped by category order and sorted by localized name.
func (s *service) ListAvailable(ctx context.Context, lang string) ([]ListedProduct, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "ListAvailable"),
	)

	products, err := s.repo.ListAvailable(ctx)
	if err != nil {
		log.Error("failed to list available products", zap.Error(err))
		return nil, err
	}

	listed := make([]ListedProduct, 0, len(products))
	order := make([]int, 0, len(products))
	for _, p := range products {
		item := ListedProduct{
			Slug:     p.Slug,
			Name:     p.DisplayName(lang),
			PriceEUR: p.PriceEUR,
			Unit:     p.Unit,
			Quantity: p.Quantity,
		}
		sortOrder := 0
		if p.Category != nil {
			item.Category = p.Category.NameFR
			if IsEnglish(lang) && p.Category.NameEN != nil && *p.Category.NameEN != "" {
				item.Category = *p.Category.NameEN
			}
			sortOrder = p.Category.SortOrder
		}
		listed = append(listed, item)
		order = append(order, sortOrder)
	}

	idx := make([]int, len(listed))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if order[idx[a]] != order[idx[b]] {
			return order[idx[a]] < order[idx[b]]
		}
		return strings.ToLower(listed[idx[a]].Name) < strings.ToLower(listed[idx[b]].Name)
	})

	sorted := make([]ListedProduct, len(listed))
	for i, j := range idx {
		sorted[i] = listed[j]
	}

	log.Debug("available products listed", zap.Int("count", len(sorted)))
	return sorted, nil
}
