package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/creatorhub/backend/internal/repo/redis"
)

func TestLimiterBlocksOn10SecondWindow(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := redrepo.NewRateRepo(client)
	limiter := NewLimiter(repo, map[string]Limit{
		"checkout": {PerMinute: 100, Per10Sec: 2},
	})

	ctx := context.Background()
	buyer := "buyer-42"

	for i := 0; i < 2; i++ {
		retryAfter, allowed, err := limiter.Allow(ctx, "checkout", buyer)
		if err != nil {
			t.Fatalf("allow #%d: %v", i+1, err)
		}
		if !allowed || retryAfter != 0 {
			t.Fatalf("unexpected result on allow #%d: allowed=%v retry_after=%d", i+1, allowed, retryAfter)
		}
	}

	retryAfter, allowed, err := limiter.Allow(ctx, "checkout", buyer)
	if err != nil {
		t.Fatalf("allow #3: %v", err)
	}
	if allowed {
		t.Fatal("expected block on third checkout in 10s window")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry_after, got %d", retryAfter)
	}

	mr.FastForward(11 * time.Second)

	retryAfter, allowed, err = limiter.Allow(ctx, "checkout", buyer)
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !allowed || retryAfter != 0 {
		t.Fatalf("unexpected result after fast forward: allowed=%v retry_after=%d", allowed, retryAfter)
	}
}

func TestLimiterBlocksOnMinuteWindow(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := redrepo.NewRateRepo(client)
	limiter := NewLimiter(repo, map[string]Limit{
		"verify": {PerMinute: 3, Per10Sec: 100},
	})

	ctx := context.Background()
	buyer := "buyer-77"

	for i := 0; i < 3; i++ {
		_, allowed, err := limiter.Allow(ctx, "verify", buyer)
		if err != nil {
			t.Fatalf("allow #%d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("unexpected block on allow #%d", i+1)
		}
	}

	retryAfter, allowed, err := limiter.Allow(ctx, "verify", buyer)
	if err != nil {
		t.Fatalf("allow #4: %v", err)
	}
	if allowed {
		t.Fatal("expected block on fourth verify within a minute")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Fatalf("unexpected retry_after: %d", retryAfter)
	}
}

func TestLimiterIsolatesActionsAndSubjects(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := redrepo.NewRateRepo(client)
	limiter := NewLimiter(repo, map[string]Limit{
		"download": {PerMinute: 1},
	})

	ctx := context.Background()

	if _, allowed, err := limiter.Allow(ctx, "download", "buyer-a"); err != nil || !allowed {
		t.Fatalf("first download for buyer-a: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := limiter.Allow(ctx, "download", "buyer-a"); err != nil || allowed {
		t.Fatalf("second download for buyer-a should block: allowed=%v err=%v", allowed, err)
	}

	// A different subject and an unconfigured action are unaffected.
	if _, allowed, err := limiter.Allow(ctx, "download", "buyer-b"); err != nil || !allowed {
		t.Fatalf("download for buyer-b: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := limiter.Allow(ctx, "browse", "buyer-a"); err != nil || !allowed {
		t.Fatalf("unconfigured action must pass: allowed=%v err=%v", allowed, err)
	}
}

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return mr, client
}
