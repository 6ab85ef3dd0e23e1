package modem

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const sessionTTL = 5 * time.Minute

// session is the (SesInfo, TokInfo) pair issued by the modem's web
// interface, cached with a 5-minute TTL.
type session struct {
	cookie    string
	token     string
	expiresAt time.Time
}

// sessionCache guards concurrent refreshes: N concurrent callers who
// miss the cache collapse into a single upstream fetch via singleflight,
// so N concurrent refreshes cost at most one transient over-fetch.
type sessionCache struct {
	mu    sync.RWMutex
	cur   *session
	group singleflight.Group
}

func newSessionCache() *sessionCache {
	return &sessionCache{}
}

func (c *sessionCache) get(fetch func() (*session, error)) (*session, error) {
	c.mu.RLock()
	if c.cur != nil && time.Now().Before(c.cur.expiresAt) {
		s := c.cur
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		c.mu.RLock()
		if c.cur != nil && time.Now().Before(c.cur.expiresAt) {
			s := c.cur
			c.mu.RUnlock()
			return s, nil
		}
		c.mu.RUnlock()

		s, err := fetch()
		if err != nil {
			return nil, err
		}
		s.expiresAt = time.Now().Add(sessionTTL)

		c.mu.Lock()
		c.cur = s
		c.mu.Unlock()

		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session), nil
}

func (c *sessionCache) invalidate() {
	c.mu.Lock()
	c.cur = nil
	c.mu.Unlock()
}
