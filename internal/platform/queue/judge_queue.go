package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"tle_arena/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// JudgeQueue moves submissions to the judge and verdicts back over two Redis lists.
// Producers LPUSH and consumers BRPOP, so both lists are FIFO. Results that keep
// failing end up on "<resultList>:dead" for an operator to inspect.
type JudgeQueue struct {
	rdb         *redis.Client
	requestList string
	resultList  string
	deadList    string
	popTimeout  time.Duration
}

func NewJudgeQueue(rdb *redis.Client, requestList, resultList string) *JudgeQueue {
	return &JudgeQueue{
		rdb:         rdb,
		requestList: requestList,
		resultList:  resultList,
		deadList:    resultList + ":dead",
		popTimeout:  5 * time.Second,
	}
}

func (q *JudgeQueue) EnqueueRequest(ctx context.Context, req model.JudgeRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal judge request: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.requestList, payload).Err(); err != nil {
		return fmt.Errorf("push judge request %s: %w", req.SubmissionID, err)
	}
	return nil
}

func (q *JudgeQueue) PushResult(ctx context.Context, res model.JudgeResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal judge result: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.resultList, payload).Err(); err != nil {
		return fmt.Errorf("push judge result %s: %w", res.SubmissionID, err)
	}
	return nil
}

// Requeue puts a result behind everything already waiting.
func (q *JudgeQueue) Requeue(ctx context.Context, res model.JudgeResult) error {
	return q.PushResult(ctx, res)
}

func (q *JudgeQueue) DeadLetter(ctx context.Context, res model.JudgeResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal judge result: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.deadList, payload).Err(); err != nil {
		return fmt.Errorf("dead-letter judge result %s: %w", res.SubmissionID, err)
	}
	return nil
}

// PopResult blocks up to the pop timeout. It returns (nil, nil) when nothing arrived.
func (q *JudgeQueue) PopResult(ctx context.Context) (*model.JudgeResult, error) {
	vals, err := q.rdb.BRPop(ctx, q.popTimeout, q.resultList).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	// BRPop returns [list, value]
	if len(vals) < 2 || vals[1] == "" {
		return nil, nil
	}
	var res model.JudgeResult
	if err := json.Unmarshal([]byte(vals[1]), &res); err != nil {
		return nil, fmt.Errorf("decode judge result %q: %w", vals[1], err)
	}
	return &res, nil
}
