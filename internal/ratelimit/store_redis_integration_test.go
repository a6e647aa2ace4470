//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idv/pkg/testutil/containers"

	"idv/internal/ratelimit"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *ratelimit.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = ratelimit.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSlidingWindow() {
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	for i := range 3 {
		res, err := s.store.Allow(ctx, "tenant:a", 3, time.Minute, now.Add(time.Duration(i)*time.Millisecond))
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
	}

	res, err := s.store.Allow(ctx, "tenant:a", 3, time.Minute, now.Add(time.Second))
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.True(now.Add(time.Minute).Equal(res.ResetAt), "reset follows the oldest counted request")

	res, err = s.store.Allow(ctx, "tenant:a", 3, time.Minute, now.Add(time.Minute+time.Millisecond))
	s.Require().NoError(err)
	s.True(res.Allowed, "the oldest request left the window")
}
