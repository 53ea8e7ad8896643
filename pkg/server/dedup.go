package server

import (
	"container/list"
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"

	"heliox-hq/charon/pkg/server/api"
	"heliox-hq/charon/pkg/translate"

	json "github.com/goccy/go-json"
	"github.com/tidwall/sjson"
)

// dedupCache is a bounded LRU of recent unary responses. Clients with
// aggressive retry policies resend identical completions back to back;
// answering from cache keeps a retry from burning a second credential
// lease on the same question.
type dedupCache struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	order    *list.List
	entries  map[string]*list.Element
	now      func() time.Time
}

type dedupEntry struct {
	key      string
	at       time.Time
	response *translate.Completion
}

func newDedupCache(capacity int, window time.Duration) *dedupCache {
	return &dedupCache{
		capacity: capacity,
		window:   window,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}
}

// key derives a stable fingerprint for a request. The stream flag is
// stripped so a unary retry of a streamed request still matches.
func (c *dedupCache) key(req *api.ChatCompletionRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	raw, err = sjson.DeleteBytes(raw, "stream")
	if err != nil {
		return "", err
	}
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:]), nil
}

// get returns the cached response for key if it is still inside the
// window, refreshing its recency.
func (c *dedupCache) get(key string) *translate.Completion {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil
	}
	entry := el.Value.(*dedupEntry)
	if c.now().Sub(entry.at) >= c.window {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil
	}
	c.order.MoveToFront(el)
	return entry.response
}

// put stores a response, evicting the least recently used entry when
// over capacity.
func (c *dedupCache) put(key string, resp *translate.Completion) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*dedupEntry)
		entry.at = c.now()
		entry.response = resp
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&dedupEntry{key: key, at: c.now(), response: resp})
	c.entries[key] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*dedupEntry).key)
	}
}
