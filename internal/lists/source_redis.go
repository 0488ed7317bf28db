package lists

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"gatekeeper/internal/constants"
)

// RedisSource keeps each group's lists as redis sets so membership checks stay
// O(1) regardless of list size.
type RedisSource struct {
	client *redis.Client
}

func NewRedisSource(client *redis.Client) *RedisSource {
	return &RedisSource{client: client}
}

func key(kind Kind, groupID string) string {
	switch kind {
	case KindNameWhitelist:
		return constants.ListKeyPrefixNameWhitelist + groupID
	case KindApprovalKeywords:
		return constants.ListKeyPrefixApprovalKeyword + groupID
	case KindRejectionKeywords:
		return constants.ListKeyPrefixRejectionKeyword + groupID
	default:
		return constants.ListKeyPrefixWhitelist + groupID
	}
}

func (s *RedisSource) Add(ctx context.Context, kind Kind, groupID string, members ...string) (int, error) {
	if len(members) == 0 {
		return 0, nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	added, err := s.client.SAdd(ctx, key(kind, groupID), args...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis SAdd failed: %w", err)
	}
	return int(added), nil
}

func (s *RedisSource) Remove(ctx context.Context, kind Kind, groupID string, members ...string) (int, error) {
	if len(members) == 0 {
		return 0, nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	removed, err := s.client.SRem(ctx, key(kind, groupID), args...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis SRem failed: %w", err)
	}
	return int(removed), nil
}

func (s *RedisSource) Members(ctx context.Context, kind Kind, groupID string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key(kind, groupID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis SMembers failed: %w", err)
	}
	return members, nil
}

func (s *RedisSource) Contains(ctx context.Context, kind Kind, groupID, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key(kind, groupID), member).Result()
	if err != nil {
		return false, fmt.Errorf("redis SIsMember failed: %w", err)
	}
	return ok, nil
}
