package maintenance

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/ryansname/drivectl/src/metrics"
)

// Reachability probes a URL with a bounded number of attempts
type Reachability struct {
	URL      string
	Client   *http.Client
	Attempts int
	Interval time.Duration
}

func NewReachability(url string) *Reachability {
	return &Reachability{
		URL:      url,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Attempts: 3,
		Interval: 10 * time.Second,
	}
}

// Check reports whether URL answered. After the last failed attempt it gives
// up quietly; the next scheduled check tries again.
func (r *Reachability) Check(ctx context.Context) bool {
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		if r.ping(ctx) {
			return true
		}
		if attempt == r.Attempts {
			break
		}
		select {
		case <-time.After(r.Interval):
		case <-ctx.Done():
			return false
		}
	}

	metrics.ReachabilityFailures.Inc()
	log.Printf("%s unreachable after %d attempts\n", r.URL, r.Attempts)
	return false
}

func (r *Reachability) ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.URL, nil)
	if err != nil {
		return false
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
