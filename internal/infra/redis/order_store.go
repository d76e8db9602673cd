package redis

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-subscription-payments/internal/domain"
	"telegram-subscription-payments/internal/domain/model"
	"telegram-subscription-payments/internal/domain/ports/repository"
)

var _ repository.OrderStore = (*OrderStore)(nil)

const orderKeyPrefix = "order:"

// OrderStore keeps orders as JSON values in Redis. Atomic transitions run
// as Lua scripts so the sticky-success and activate-once guarantees hold
// across processes. Keys carry a TTL as the retention policy.
type OrderStore struct {
	client *Client
	ttl    time.Duration
}

func NewOrderStore(client *Client, ttl time.Duration) *OrderStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &OrderStore{client: client, ttl: ttl}
}

func orderKey(orderID string) string { return orderKeyPrefix + orderID }

// luaSwapStatus compares the stored status and swaps it in one step.
// Returns -1 when the key is missing, 0 when the status did not match.
var luaSwapStatus = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then return -1 end
local o = cjson.decode(raw)
if o.status ~= ARGV[1] then return 0 end
o.status = ARGV[2]
o.updated_at = ARGV[3]
redis.call("SET", KEYS[1], cjson.encode(o), "KEEPTTL")
return 1`)

// luaMarkActivated flips activated false->true exactly once.
var luaMarkActivated = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then return -1 end
local o = cjson.decode(raw)
if o.activated then return 0 end
o.activated = true
o.updated_at = ARGV[1]
redis.call("SET", KEYS[1], cjson.encode(o), "KEEPTTL")
return 1`)

func (s *OrderStore) Get(ctx context.Context, orderID string) (*model.Order, error) {
	raw, err := s.client.cli.Get(ctx, orderKey(orderID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	var o model.Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OrderStore) Put(ctx context.Context, order *model.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.client.cli.Set(ctx, orderKey(order.OrderID), data, s.ttl).Err()
}

func (s *OrderStore) CompareAndSwapStatus(ctx context.Context, orderID string, from, to model.OrderStatus) (bool, error) {
	res, err := luaSwapStatus.Run(ctx, s.client.cli, []string{orderKey(orderID)},
		string(from), string(to), time.Now().Format(time.RFC3339Nano)).Int()
	if err != nil {
		return false, err
	}
	if res == -1 {
		return false, domain.ErrOrderNotFound
	}
	return res == 1, nil
}

func (s *OrderStore) MarkActivated(ctx context.Context, orderID string) (bool, error) {
	res, err := luaMarkActivated.Run(ctx, s.client.cli, []string{orderKey(orderID)},
		time.Now().Format(time.RFC3339Nano)).Int()
	if err != nil {
		return false, err
	}
	if res == -1 {
		return false, domain.ErrOrderNotFound
	}
	return res == 1, nil
}

func (s *OrderStore) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*model.Order, error) {
	all, err := s.scanAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.Order
	for _, o := range all {
		if o.Status == model.OrderStatusPending && o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *OrderStore) List(ctx context.Context) ([]*model.Order, error) {
	all, err := s.scanAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

func (s *OrderStore) Reset(ctx context.Context) error {
	iter := s.client.cli.Scan(ctx, 0, orderKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.cli.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *OrderStore) scanAll(ctx context.Context) ([]*model.Order, error) {
	var out []*model.Order
	iter := s.client.cli.Scan(ctx, 0, orderKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.cli.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, err
		}
		var o model.Order
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			continue
		}
		out = append(out, &o)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
