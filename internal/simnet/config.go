package simnet

import (
	"hash/fnv"
	"math"
	"time"
)

// LatencyRange is a half-open duration interval [Lo, Hi) that send
// latencies are drawn from uniformly. Lo must be strictly less than Hi.
type LatencyRange struct {
	Lo time.Duration `yaml:"start"`
	Hi time.Duration `yaml:"end"`
}

// Config is the process-wide, mutable tuning knob set: packet-loss
// probability and the send-latency range. It is read by every
// try_send and mutated only through Network.UpdateConfig.
type Config struct {
	PacketLossRate float64      `yaml:"packet_loss_rate"`
	SendLatency    LatencyRange `yaml:"send_latency"`
}

// DefaultConfig matches the spec's documented default: no loss, 1ms..10ms
// latency.
func DefaultConfig() Config {
	return Config{
		PacketLossRate: 0,
		SendLatency:    LatencyRange{Lo: time.Millisecond, Hi: 10 * time.Millisecond},
	}
}

// Validate reports whether the config has a loss rate in [0,1] and a
// non-empty latency range. Network.UpdateConfig calls this and panics
// on failure — a misconfigured loss rate or inverted latency range is
// a programmer error, not a runtime condition to recover from.
func (c Config) Validate() error {
	if c.PacketLossRate < 0 || c.PacketLossRate > 1 {
		return errConfigInvalid("packet_loss_rate must be in [0,1]")
	}
	if c.SendLatency.Lo >= c.SendLatency.Hi {
		return errConfigInvalid("send_latency.start must be strictly less than send_latency.end")
	}
	return nil
}

type errConfigInvalid string

func (e errConfigInvalid) Error() string { return "simnet: invalid config: " + string(e) }

// Equal compares two Configs treating PacketLossRate bit-exactly: two
// configs differing only by NaN bit pattern are unequal here, even
// though NaN != NaN would otherwise make float equality useless for
// this purpose.
func (c Config) Equal(other Config) bool {
	return math.Float64bits(c.PacketLossRate) == math.Float64bits(other.PacketLossRate) &&
		c.SendLatency == other.SendLatency
}

// Hash returns a bit-exact hash of c, suitable for use as a map key or
// in test fixtures that need two Configs to hash identically iff
// Equal reports true. It hashes PacketLossRate's bit pattern rather
// than its numeric value for the same NaN-stability reason as Equal.
func (c Config) Hash() uint64 {
	h := fnv.New64a()
	var buf [24]byte
	bePutUint64(buf[0:8], math.Float64bits(c.PacketLossRate))
	bePutUint64(buf[8:16], uint64(c.SendLatency.Lo))
	bePutUint64(buf[16:24], uint64(c.SendLatency.Hi))
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

func bePutUint64(b []byte, v uint64) {
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
}
