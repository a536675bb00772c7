package pull

import (
	"context"
	"errors"
	"sync"

	"stronglink/pkg/catalog"
)

// sequencer 让断点只越过连续完成的记录
// 下载是并发的、完成顺序不确定；断点必须保证它之前的所有记录都已经处理，
// 这样中断后从断点恢复不会漏掉文件。
type sequencer struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]string
	cursor  *cursor
}

func newSequencer(c *cursor) *sequencer {
	return &sequencer{pending: make(map[uint64]string), cursor: c}
}

// done 标记第 seq 条记录处理完毕，必要时推进断点
func (s *sequencer) done(ctx context.Context, seq uint64, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[seq] = uri
	last := ""
	for {
		u, ok := s.pending[s.next]
		if !ok {
			break
		}
		delete(s.pending, s.next)
		s.next++
		last = u
	}
	if last == "" {
		return nil
	}
	return s.cursor.save(ctx, last)
}

// cursor 是持久化在 catalog 中的断点
type cursor struct {
	repo     *catalog.Repository
	name     string
	version  int64
	position string
}

func loadCursor(ctx context.Context, repo *catalog.Repository, name string) (*cursor, error) {
	c := &cursor{repo: repo, name: name}
	rec, err := repo.GetCursor(ctx, name)
	if errors.Is(err, catalog.ErrCursorNotFound) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	c.version = rec.Version
	c.position = rec.Position
	return c, nil
}

// save 以 CAS 方式写入；另一个同名任务抢先推进时返回 ErrConcurrentUpdate
func (c *cursor) save(ctx context.Context, position string) error {
	if err := c.repo.UpdateCursor(ctx, c.name, position, c.version); err != nil {
		return err
	}
	c.version++
	c.position = position
	return nil
}
