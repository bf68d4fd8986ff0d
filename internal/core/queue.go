package core

import (
	"fmt"

	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/queue"
)

// QueueService exposes queue state per server.
type QueueService struct {
	inspector queue.Inspector
}

func NewQueueService(inspector queue.Inspector) *QueueService {
	return &QueueService{inspector: inspector}
}

func (s *QueueService) ListQueues(serverID string) ([]string, error) {
	if s.inspector == nil {
		return nil, queue.ErrUnsupported
	}
	names, err := s.inspector.ListQueues(model.QueuePrefix(serverID))
	if err != nil {
		return nil, fmt.Errorf("list queues for server %s: %w", serverID, err)
	}
	return names, nil
}

func (s *QueueService) GetQueueStats(serverID string) ([]queue.QueueStats, error) {
	if s.inspector == nil {
		return nil, queue.ErrUnsupported
	}
	stats, err := s.inspector.Stats(model.QueuePrefix(serverID))
	if err != nil {
		return nil, fmt.Errorf("queue stats for server %s: %w", serverID, err)
	}
	return stats, nil
}

// FlushQueue drops the queue's jobs. Without force it refuses while a job
// is active.
func (s *QueueService) FlushQueue(name string, force bool) error {
	if s.inspector == nil {
		return queue.ErrUnsupported
	}
	if err := s.inspector.Flush(name, force); err != nil {
		return fmt.Errorf("flush queue %s: %w", name, err)
	}
	return nil
}

func (s *QueueService) GetJob(queueName, id string) (*queue.Job, error) {
	if s.inspector == nil {
		return nil, queue.ErrUnsupported
	}
	job, err := s.inspector.Job(queueName, id)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}
