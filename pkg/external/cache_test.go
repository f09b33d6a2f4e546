package external

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/iliaanaa/genekor/internal/domain"
)

func record(gene, c, p string) *domain.VariantRecord {
	return &domain.VariantRecord{
		GeneSymbol:       gene,
		NucleotideChange: null.StringFrom(c),
		ProteinChange:    null.StringFrom(p),
	}
}

func TestEvaluationKey(t *testing.T) {
	a := record("BRCA1", "c.5123C>A", "p.Ala1708Glu")

	key := EvaluationKey("20240507", a)
	assert.True(t, strings.HasPrefix(key, "genekor:evaluation:20240507:"))
	assert.Len(t, strings.TrimPrefix(key, "genekor:evaluation:20240507:"), 32)

	assert.Equal(t, key, EvaluationKey("20240507", record("BRCA1", "c.5123C>A", "p.Ala1708Glu")))
	assert.NotEqual(t, key, EvaluationKey("20240604", a))
	assert.NotEqual(t, key, EvaluationKey("20240507", record("BRCA1", "c.5123C>G", "p.Ala1708Gly")))
	assert.NotEqual(t, key, EvaluationKey("20240507", record("BRCA2", "c.5123C>A", "p.Ala1708Glu")))
}

func TestEvaluationKey_TargetIdentityAndHistory(t *testing.T) {
	base := func() *domain.VariantRecord {
		rec := record("BRCA1", "c.123G>A", "p.Trp41*")
		rec.VariationID = 4
		rec.Significance = domain.PATHOGENIC
		rec.ReviewStatus = "criteria provided, multiple submitters, no conflicts"
		rec.SubmitterCount = 3
		rec.SubmitterCategories = []int{2, 3}
		rec.SubmissionSignificances = []domain.ClinicalSignificance{domain.PATHOGENIC}
		return rec
	}
	key := EvaluationKey("20240507", base())
	assert.Equal(t, key, EvaluationKey("20240507", base()))

	changes := map[string]func(*domain.VariantRecord){
		"variation id":  func(r *domain.VariantRecord) { r.VariationID = 0 },
		"significance":  func(r *domain.VariantRecord) { r.Significance = domain.BENIGN },
		"review status": func(r *domain.VariantRecord) { r.ReviewStatus = "" },
		"submitters":    func(r *domain.VariantRecord) { r.SubmitterCount = 2 },
		"categories":    func(r *domain.VariantRecord) { r.SubmitterCategories = []int{2} },
		"submissions": func(r *domain.VariantRecord) {
			r.SubmissionSignificances = append(r.SubmissionSignificances, domain.BENIGN)
		},
	}
	for name, change := range changes {
		t.Run(name, func(t *testing.T) {
			rec := base()
			change(rec)
			assert.NotEqual(t, key, EvaluationKey("20240507", rec))
		})
	}
}

func setupTestCache(t *testing.T) *ResultCache {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set, skipping Redis tests")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(context.Background()).Err())

	cache := NewResultCacheFromClient(client, time.Minute, quietLogger())
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestResultCache_SetGet(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()
	release := "test" + time.Now().Format("150405.000000")
	t.Cleanup(func() { cache.InvalidateRelease(ctx, release) })

	target := record("BRCA1", "c.5123C>A", "p.Ala1708Glu")
	_, ok := cache.Get(ctx, release, target)
	assert.False(t, ok)

	ev := &domain.Evaluation{
		Target:        target,
		Codes:         []domain.EvidenceCode{domain.PS1},
		Reliable:      true,
		ConflictScore: 0,
	}
	require.NoError(t, cache.Set(ctx, release, ev))

	got, ok := cache.Get(ctx, release, target)
	require.True(t, ok)
	assert.Equal(t, []domain.EvidenceCode{domain.PS1}, got.Codes)
	assert.True(t, got.Reliable)

	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	n, err := cache.InvalidateRelease(ctx, release)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok = cache.Get(ctx, release, target)
	assert.False(t, ok)
}

func TestResultCache_CorruptedEntry(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()
	release := "corrupt" + time.Now().Format("150405.000000")

	target := record("BRCA1", "c.1A>G", "p.Met1?")
	key := EvaluationKey(release, target)
	require.NoError(t, cache.redis.Set(ctx, key, "{not json", time.Minute).Err())

	_, ok := cache.Get(ctx, release, target)
	assert.False(t, ok)

	exists, err := cache.redis.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestResultCache_SetWithoutTarget(t *testing.T) {
	cache := NewResultCacheFromClient(redis.NewClient(&redis.Options{Addr: "localhost:0"}), 0, quietLogger())
	defer cache.Close()

	assert.Error(t, cache.Set(context.Background(), "20240507", &domain.Evaluation{}))
	assert.Equal(t, 24*time.Hour, cache.defaultTTL)
}
