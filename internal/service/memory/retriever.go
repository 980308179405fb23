package memory

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sandevgo/tedbot/internal/core"
	"github.com/sandevgo/tedbot/pkg/log"
)

// duplicateRegex reduces a memory text to its bare-word signature so that
// "Likes jazz" and "likes   jazz" collapse into one entry.
var duplicateRegex = regexp.MustCompile(`\W+`)

type Config struct {
	// MinSimilarity drops hits the provider scored below this value.
	MinSimilarity float64
	// RecencyHalfLifeDays halves a hit's selection weight per elapsed period.
	RecencyHalfLifeDays float64
}

// Retriever wraps the external semantic memory provider: one search per turn,
// deduplicated and re-ranked. Any provider failure surfaces as
// core.ErrMemoryUnavailable so the caller can degrade instead of aborting.
type Retriever struct {
	provider core.MemoryProvider
	cfg      Config
	now      func() time.Time
}

func NewRetriever(provider core.MemoryProvider, cfg Config) *Retriever {
	return &Retriever{
		provider: provider,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (r *Retriever) Retrieve(ctx context.Context, query, userID string, k int) ([]core.MemoryHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		// Some providers reject blank queries outright; skip the round trip.
		log.FromCtx(ctx).Debug().Msg("blank query, skipping memory retrieval")
		return nil, nil
	}

	// Over-fetch so the similarity cutoff and dedup still leave k survivors.
	raw, err := r.provider.Search(ctx, query, userID, k*3)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMemoryUnavailable, err)
	}

	hits := r.selectTop(raw, k)

	// Final presentation order: relevance first, newer wins a tie.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].RelevanceScore != hits[j].RelevanceScore {
			return hits[i].RelevanceScore > hits[j].RelevanceScore
		}
		return hits[i].CreatedAt.After(hits[j].CreatedAt)
	})
	return hits, nil
}

// selectTop deduplicates raw hits by text signature (keeping the
// highest-scored instance) and picks the k best by recency-weighted score.
func (r *Retriever) selectTop(raw []core.MemoryHit, k int) []core.MemoryHit {
	bySig := make(map[string]core.MemoryHit)
	order := make([]string, 0, len(raw))
	for _, hit := range raw {
		sig := signature(hit.Text)
		if sig == "" {
			continue
		}
		prev, seen := bySig[sig]
		if !seen {
			bySig[sig] = hit
			order = append(order, sig)
			continue
		}
		if hit.RelevanceScore > prev.RelevanceScore ||
			(hit.RelevanceScore == prev.RelevanceScore && hit.CreatedAt.After(prev.CreatedAt)) {
			bySig[sig] = hit
		}
	}

	now := r.now()
	type scored struct {
		hit    core.MemoryHit
		weight float64
	}
	candidates := make([]scored, 0, len(order))
	for _, sig := range order {
		hit := bySig[sig]
		w := r.weight(hit, now)
		if w <= 0 {
			continue
		}
		candidates = append(candidates, scored{hit: hit, weight: w})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].weight > candidates[j].weight
	})
	if k < len(candidates) {
		candidates = candidates[:k]
	}

	hits := make([]core.MemoryHit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, c.hit)
	}
	return hits
}

// weight discounts a hit's similarity by its age, halving per configured
// half-life. Below the similarity floor the hit is excluded entirely.
func (r *Retriever) weight(hit core.MemoryHit, now time.Time) float64 {
	if hit.RelevanceScore < r.cfg.MinSimilarity {
		return 0
	}
	if r.cfg.RecencyHalfLifeDays <= 0 || hit.CreatedAt.IsZero() {
		return hit.RelevanceScore
	}
	ageDays := now.Sub(hit.CreatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return hit.RelevanceScore * math.Pow(0.5, ageDays/r.cfg.RecencyHalfLifeDays)
}

func signature(text string) string {
	return duplicateRegex.ReplaceAllString(strings.ToLower(text), "")
}
