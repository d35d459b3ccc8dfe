package kafka

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-image-orders/internal/queue"
)

var errEmptyOrderID = errors.New("job has no order id")

func EncodeJob(job queue.Job) ([]byte, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	return b, nil
}

func DecodeJob(b []byte) (queue.Job, error) {
	var job queue.Job
	if err := json.Unmarshal(b, &job); err != nil {
		return queue.Job{}, fmt.Errorf("decode job: %w", err)
	}
	if job.OrderID == "" {
		return queue.Job{}, errEmptyOrderID
	}
	return job, nil
}
