package server

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// LimitReason describes why a connection was rejected.
type LimitReason string

const (
	LimitGlobal LimitReason = "global_limit"
	LimitPerIP  LimitReason = "ip_limit"
	LimitRate   LimitReason = "rate_limit"
)

const (
	bucketSweepInterval = 5 * time.Minute
	bucketIdleCutoff    = 10 * time.Minute
)

// ConnectionLimits guards admission of new WebSocket connections with three
// checks: a token bucket on connection attempts per IP, a global cap on
// concurrent connections, and a per-IP cap.
type ConnectionLimits struct {
	maxGlobal int64
	current   atomic.Int64

	mu       sync.Mutex
	maxPerIP int
	perIP    map[string]int
	buckets  map[string]*ipBucket
	rate     rate.Limit
	burst    int
	sweepAt  time.Time
}

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewConnectionLimits creates the admission guard. maxGlobal caps concurrent
// connections process-wide, maxPerIP caps them per client address, and
// perSecond/burst shape the rate of new connection attempts per address.
func NewConnectionLimits(maxGlobal int64, maxPerIP int, perSecond float64, burst int) *ConnectionLimits {
	return &ConnectionLimits{
		maxGlobal: maxGlobal,
		maxPerIP:  maxPerIP,
		perIP:     make(map[string]int),
		buckets:   make(map[string]*ipBucket),
		rate:      rate.Limit(perSecond),
		burst:     burst,
		sweepAt:   time.Now().Add(bucketSweepInterval),
	}
}

// Acquire attempts to claim a connection slot for the given IP. On refusal
// the returned reason names the exhausted limit and nothing stays held.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	// Rate check first, it is the cheapest to refuse
	if !l.allowAttempt(ip) {
		return false, LimitRate
	}

	if !l.acquireGlobal() {
		return false, LimitGlobal
	}

	if !l.acquireIP(ip) {
		l.releaseGlobal()
		return false, LimitPerIP
	}

	return true, ""
}

// Release returns the slots held by one connection.
func (l *ConnectionLimits) Release(ip string) {
	l.releaseIP(ip)
	l.releaseGlobal()
}

// Current returns the number of connections currently held.
func (l *ConnectionLimits) Current() int64 {
	return l.current.Load()
}

// CountForIP returns the slots currently held by the given address.
func (l *ConnectionLimits) CountForIP(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}

func (l *ConnectionLimits) acquireGlobal() bool {
	for {
		current := l.current.Load()
		if current >= l.maxGlobal {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (l *ConnectionLimits) releaseGlobal() {
	l.current.Add(-1)
}

func (l *ConnectionLimits) acquireIP(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.perIP[ip] >= l.maxPerIP {
		return false
	}
	l.perIP[ip]++
	return true
}

func (l *ConnectionLimits) releaseIP(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count := l.perIP[ip]; count > 0 {
		l.perIP[ip] = count - 1
		if l.perIP[ip] == 0 {
			delete(l.perIP, ip)
		}
	}
}

// allowAttempt consumes a token from the IP's bucket, creating the bucket
// on first sight. Idle buckets are swept periodically to bound the map.
func (l *ConnectionLimits) allowAttempt(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.After(l.sweepAt) {
		l.sweepBuckets(now)
		l.sweepAt = now.Add(bucketSweepInterval)
	}

	bucket, ok := l.buckets[ip]
	if !ok {
		bucket = &ipBucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[ip] = bucket
	}
	bucket.lastSeen = now

	return bucket.limiter.Allow()
}

// sweepBuckets removes buckets idle past the cutoff. Caller holds mu.
func (l *ConnectionLimits) sweepBuckets(now time.Time) {
	cutoff := now.Add(-bucketIdleCutoff)
	for ip, bucket := range l.buckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
}
