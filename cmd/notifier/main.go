// The notifier drains the ride-events topic: it refreshes the redis
// ride snapshots and forwards each event to the push provider for
// devices without a live websocket. Delivery is at-least-once; both
// sinks tolerate replays.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/carpool/internal/events"
	"github.com/example/carpool/internal/snapshot"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_events_consumed_total",
		Help: "Total ride events consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_events_invalid_total",
		Help: "Total invalid messages received",
	})
	snapshotUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_snapshot_updates_total",
		Help: "Total successful snapshot refreshes",
	})
	snapshotErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_snapshot_errors_total",
		Help: "Total snapshot refresh failures",
	})
	pushErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_push_errors_total",
		Help: "Total push delivery failures",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, snapshotUpdates, snapshotErrors, pushErrors)
}

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	if brokersEnv == "" {
		brokersEnv = os.Getenv("KAFKA_BROKER")
	}
	brokers := []string{}
	if brokersEnv != "" {
		for _, b := range strings.Split(brokersEnv, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	} else {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "ride-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "carpool-notifier"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rc := redis.NewClient(&redis.Options{Addr: redisAddr, Password: os.Getenv("REDIS_PASSWORD")})
	snaps := snapshot.NewCacheWithClient(rc)

	var pusher events.Dispatcher
	if ep := os.Getenv("PUSH_ENDPOINT"); ep != "" {
		pusher = events.NewPushClient(ep, os.Getenv("PUSH_KEY"))
	}

	// metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	log.Printf("notifier listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down notifier")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		msgsConsumed.Inc()

		var ev events.RideEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.RideID == "" {
			msgsInvalid.Inc()
			log.Printf("invalid message: %v", err)
			continue
		}

		if err := updateSnapshotWithRetry(ctx, snaps, ev, 3, 200*time.Millisecond); err != nil {
			snapshotErrors.Inc()
			log.Printf("snapshot refresh failed for ride=%s: %v", ev.RideID, err)
		} else {
			snapshotUpdates.Inc()
		}

		if pusher != nil {
			if err := pusher.Publish(ev); err != nil {
				pushErrors.Inc()
				log.Printf("push delivery failed for ride=%s: %v", ev.RideID, err)
			}
		}
	}
}

// SnapshotUpdater is the small subset of snapshot operations we need for
// tests and production.
type SnapshotUpdater interface {
	Set(ctx context.Context, rideID, status string, available, total int) error
}

// updateSnapshotWithRetry refreshes a ride snapshot with retry/backoff.
func updateSnapshotWithRetry(ctx context.Context, sc SnapshotUpdater, ev events.RideEvent, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = sc.Set(ctx, ev.RideID, ev.RideStatus, ev.AvailableSeats, ev.TotalSeats)
		if err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
