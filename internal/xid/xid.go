package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

// Sequence issues receipt numbers that cannot collide within a process: a
// fixed per-process token plus an atomic counter. Wall-clock resolution is
// never part of the uniqueness guarantee, so two receipts issued in the same
// clock tick still get distinct numbers.
type Sequence struct {
	prefix  string
	process string
	counter atomic.Uint64
}

func NewSequence(prefix string) *Sequence {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "RCP"
	}
	process := strings.ToUpper(strconv.FormatInt(time.Now().UTC().Unix(), 36))
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err == nil {
		process += strings.ToUpper(hex.EncodeToString(buf))
	}
	return &Sequence{prefix: prefix, process: process}
}

func (s *Sequence) Next() string {
	n := s.counter.Add(1)
	return fmt.Sprintf("%s-%s-%06d", s.prefix, s.process, n)
}
