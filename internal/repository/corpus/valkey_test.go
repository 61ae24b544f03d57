package corpus

import (
	"context"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/db"
	"github.com/kailas-cloud/listbot/internal/db/redis"
)

func TestDrop_ValkeyRemovesRows(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	repo := New(redis.NewStoreForTest(c, redis.FlavorValkey), IndexConfig{Dimensions: 4}, zap.NewNop())

	var unlinked []string
	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.DROPINDEX", "listbot:corpus:idx")).
			Return(mock.Result(mock.RedisString("OK"))),
		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
				return cmd[0] == "SCAN" && cmd[3] == "listbot:corpus:*"
			})).
			Return(mock.Result(mock.RedisArray(
				mock.RedisString("0"),
				mock.RedisArray(mock.RedisString("listbot:corpus:list:1"), mock.RedisString("listbot:corpus:list:2")),
			))),
		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
				if cmd[0] != "UNLINK" {
					return false
				}
				unlinked = cmd[1:]
				return true
			})).
			Return(mock.Result(mock.RedisInt64(2))),
	)

	if err := repo.Drop(context.Background(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(unlinked) != 2 {
		t.Errorf("expected both corpus rows unlinked, got %v", unlinked)
	}
}

func TestSearch_L2IndexKeepsNearNeighbours(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)
	repo := New(redis.NewStoreForTest(c, redis.FlavorValkey),
		IndexConfig{Dimensions: 4, Distance: db.DistanceL2}, zap.NewNop())

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool { return cmd[0] == "FT.SEARCH" })).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(2),
			mock.RedisString("listbot:corpus:list:1"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("1.2"),
				mock.RedisString("entity_type"), mock.RedisString("list"),
				mock.RedisString("entity_id"), mock.RedisString("1"),
				mock.RedisString("__content"), mock.RedisString("cardiology targets"),
			),
			mock.RedisString("listbot:corpus:list:2"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("3.5"),
				mock.RedisString("entity_type"), mock.RedisString("list"),
				mock.RedisString("entity_id"), mock.RedisString("2"),
			),
		)))

	docs, err := repo.Search(context.Background(), testVector(), 0.35, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0].EntityID() != "1" {
		t.Fatalf("expected the near neighbour only, got %+v", docs)
	}
	if s := docs[0].Similarity(); s < 0.399 || s > 0.401 {
		t.Errorf("expected similarity 0.4, got %f", s)
	}
}
