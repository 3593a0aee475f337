package logger

import (
	"container/ring"
	"strconv"
	"sync"
	"time"
)

// Ring is a fixed-capacity in-memory log sink; Dump reads it back without
// reopening the log file on disk. No command handler (CHECK, STATS or
// otherwise) reads it.
type Ring struct {
	size int

	mu sync.Mutex
	r  *ring.Ring
}

func NewRing(size int) *Ring {
	return &Ring{r: ring.New(size), size: size}
}

func (l *Ring) Println(v ...interface{}) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	var buf []byte
	hour, min, sec := now.Clock()
	buf = strconv.AppendInt(buf, int64(hour), 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(min), 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(sec), 10)
	buf = append(buf, ' ')
	for _, item := range v {
		if s, ok := item.(string); ok {
			buf = append(buf, s...)
		}
	}

	l.r = l.r.Next()
	l.r.Value = string(buf)
}

// Dump returns buffered log lines oldest to newest.
func (l *Ring) Dump() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	res := make([]string, 0, l.size)
	l.r.Next().Do(func(v interface{}) {
		if v == nil {
			return
		}
		res = append(res, v.(string))
	})
	return res
}
