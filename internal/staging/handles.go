package staging

import (
	"bufio"
	"container/list"
	"errors"
	"os"
	"sync"

	"github.com/aevon-lab/geosplit/internal/core/groupkey"
)

// handleCache is an LRU of open append handles, one per unit. Bounding it keeps a run
// with many thousands of groups under the process file descriptor limit.
type handleCache struct {
	mu       sync.Mutex
	capacity int
	cache    map[groupkey.Identifier]*list.Element
	order    *list.List
}

type handle struct {
	id groupkey.Identifier
	f  *os.File
	w  *bufio.Writer
}

func (h *handle) close() error {
	flushErr := h.w.Flush()
	closeErr := h.f.Close()
	return errors.Join(flushErr, closeErr)
}

func newHandleCache(capacity int) *handleCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &handleCache{
		capacity: capacity,
		cache:    make(map[groupkey.Identifier]*list.Element),
		order:    list.New(),
	}
}

// get returns the open handle for id, opening it with open on a miss. When the cache is
// full the least recently used handle is flushed and closed first.
func (c *handleCache) get(id groupkey.Identifier, open func() (*os.File, error)) (*handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[id]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*handle), nil
	}

	if c.order.Len() >= c.capacity {
		if err := c.evictOldest(); err != nil {
			return nil, err
		}
	}

	f, err := open()
	if err != nil {
		return nil, err
	}
	h := &handle{id: id, f: f, w: bufio.NewWriter(f)}
	c.cache[id] = c.order.PushFront(h)
	return h, nil
}

// release flushes and closes the handle of id, if open.
func (c *handleCache) release(id groupkey.Identifier) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[id]
	if !ok {
		return nil
	}
	delete(c.cache, id)
	c.order.Remove(elem)
	return elem.Value.(*handle).close()
}

// closeAll flushes and closes every open handle.
func (c *handleCache) closeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		errs = append(errs, elem.Value.(*handle).close())
	}
	c.cache = make(map[groupkey.Identifier]*list.Element)
	c.order = list.New()
	return errors.Join(errs...)
}

func (c *handleCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *handleCache) evictOldest() error {
	oldest := c.order.Back()
	if oldest == nil {
		return nil
	}
	h := oldest.Value.(*handle)
	delete(c.cache, h.id)
	c.order.Remove(oldest)
	return h.close()
}
