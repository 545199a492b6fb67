package eventbus

import (
	"context"
	"sync"
)

var _ EventBus = (*MemoryBus)(nil)

// MemoryBus 进程内事件总线。订阅者集合是唯一的共享状态，
// 注册/注销必须在并发广播下安全。
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]chan Event
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs: make(map[string][]chan Event),
	}
}

func (b *MemoryBus) Publish(ctx context.Context, sessionID string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[sessionID] {
		// 广播尽力而为：慢消费者丢事件，不阻塞发布方
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, sessionID string) (<-chan Event, error) {
	ch := make(chan Event, 16)

	b.mu.Lock()
	b.subs[sessionID] = append(b.subs[sessionID], ch)
	b.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			b.unsubscribe(sessionID, ch)
		}()
	}

	return ch, nil
}

func (b *MemoryBus) unsubscribe(sessionID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	chans := b.subs[sessionID]
	for i, c := range chans {
		if c == ch {
			b.subs[sessionID] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(b.subs[sessionID]) == 0 {
		delete(b.subs, sessionID)
	}
	close(ch)
}
