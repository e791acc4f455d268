package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/looplj/approvalhub/internal/objects"
)

const grantKeyPrefix = "aph:grant:"

// redisGrantStore keeps each subject's edges in a set keyed by relation
// and subject.
type redisGrantStore struct {
	client *redis.Client
}

func grantKey(relation, subject string) string {
	return grantKeyPrefix + relation + ":" + subject
}

func (s *redisGrantStore) RelatedSubjects(ctx context.Context, subjectGUID, relation string) ([]string, error) {
	values, err := s.client.SMembers(ctx, grantKey(relation, subjectGUID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis grants: %w", err)
	}

	return values, nil
}

func (s *redisGrantStore) List(ctx context.Context, subject, relation string) ([]string, error) {
	return s.RelatedSubjects(ctx, subject, relation)
}

func (s *redisGrantStore) Grant(ctx context.Context, subject, relation, object string) error {
	if err := s.client.SAdd(ctx, grantKey(relation, subject), object).Err(); err != nil {
		return fmt.Errorf("redis store grant: %w", err)
	}

	return nil
}

func (s *redisGrantStore) Revoke(ctx context.Context, subject, relation, object string) error {
	if err := s.client.SRem(ctx, grantKey(relation, subject), object).Err(); err != nil {
		return fmt.Errorf("redis revoke grant: %w", err)
	}

	return nil
}

func (s *redisGrantStore) Snapshot(ctx context.Context) ([]objects.GrantInfo, error) {
	var grants []objects.GrantInfo

	iter := s.client.Scan(ctx, 0, grantKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		relation, subject, ok := strings.Cut(strings.TrimPrefix(key, grantKeyPrefix), ":")
		if !ok {
			continue
		}

		values, err := s.client.SMembers(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("redis snapshot grants: %w", err)
		}

		for _, v := range values {
			grants = append(grants, objects.GrantInfo{SubjectGUID: subject, Relation: relation, ObjectGUID: v})
		}
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis snapshot grants: %w", err)
	}

	return grants, nil
}
