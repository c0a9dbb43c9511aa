package ops

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type HTTP struct {
	Addr string
}

type Kafka struct {
	Brokers    []string
	EventTopic string
	TradeTopic string
}

type Storage struct {
	WALDir        string
	WALSegmentMax int64
	OutboxDir     string
	SnapshotDir   string
}

type Engine struct {
	QueueSize     int
	SubmitTimeout time.Duration
}

type Jobs struct {
	SnapshotEvery  time.Duration
	ReclaimEvery   time.Duration
	BroadcastEvery time.Duration
}

type Markets struct {
	// Symbols admitted at startup, e.g. "BTC-USDT,ETH-USDT".
	Symbols  []string
	TickSize int64
	LotSize  int64
}

type Config struct {
	HTTP    HTTP
	Kafka   Kafka
	Storage Storage
	Engine  Engine
	Jobs    Jobs
	Markets Markets
}

func Default() Config {
	return Config{
		HTTP: HTTP{
			Addr: ":8080",
		},
		Kafka: Kafka{
			Brokers:    []string{"localhost:9092"},
			EventTopic: "order-events",
			TradeTopic: "trade-feed",
		},
		Storage: Storage{
			WALDir:        "data/wal",
			WALSegmentMax: 64 << 20,
			OutboxDir:     "data/outbox",
			SnapshotDir:   "data/snapshots",
		},
		Engine: Engine{
			QueueSize:     1024,
			SubmitTimeout: 50 * time.Millisecond,
		},
		Jobs: Jobs{
			SnapshotEvery:  30 * time.Second,
			ReclaimEvery:   time.Second,
			BroadcastEvery: 250 * time.Millisecond,
		},
		Markets: Markets{
			Symbols:  []string{"BTC-USDT"},
			TickSize: 1,
			LotSize:  1,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and the
// environment. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_EVENT_TOPIC"); v != "" {
		cfg.Kafka.EventTopic = v
	}
	if v := os.Getenv("KAFKA_TRADE_TOPIC"); v != "" {
		cfg.Kafka.TradeTopic = v
	}

	if v := os.Getenv("WAL_DIR"); v != "" {
		cfg.Storage.WALDir = v
	}
	if v := os.Getenv("WAL_SEGMENT_MAX"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Storage.WALSegmentMax = n
		}
	}
	if v := os.Getenv("OUTBOX_DIR"); v != "" {
		cfg.Storage.OutboxDir = v
	}
	if v := os.Getenv("SNAPSHOT_DIR"); v != "" {
		cfg.Storage.SnapshotDir = v
	}

	if v := os.Getenv("ENGINE_QUEUE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Engine.QueueSize = n
		}
	}
	if v := os.Getenv("ENGINE_SUBMIT_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Engine.SubmitTimeout = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("SNAPSHOT_INTERVAL_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.Jobs.SnapshotEvery = time.Duration(sec) * time.Second
		}
	}
	if v := os.Getenv("BROADCAST_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.Jobs.BroadcastEvery = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("MARKET_SYMBOLS"); v != "" {
		cfg.Markets.Symbols = splitList(v)
	}
	if v := os.Getenv("MARKET_TICK_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Markets.TickSize = n
		}
	}
	if v := os.Getenv("MARKET_LOT_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Markets.LotSize = n
		}
	}

	return cfg
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
