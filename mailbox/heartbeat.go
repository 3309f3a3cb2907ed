package mailbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/courier/iox"
)

// ErrNoHeartbeat is returned when no responder has written a heartbeat.
var ErrNoHeartbeat = errors.New("no responder heartbeat")

// Heartbeat is the responder liveness record, msgpack-encoded at
// HeartbeatName. Counters are cumulative since StartedAt.
type Heartbeat struct {
	ContractVersion string    `msgpack:"contract_version" json:"contract_version"`
	PID             int       `msgpack:"pid" json:"pid"`
	Hostname        string    `msgpack:"hostname" json:"hostname"`
	StartedAt       time.Time `msgpack:"started_at" json:"started_at"`
	LastScan        time.Time `msgpack:"last_scan" json:"last_scan"`
	Ticks           int64     `msgpack:"ticks" json:"ticks"`
	InFlight        int64     `msgpack:"in_flight" json:"in_flight"`
	Responded       int64     `msgpack:"responded" json:"responded"`
	Rejected        int64     `msgpack:"rejected" json:"rejected"`
	Failed          int64     `msgpack:"failed" json:"failed"`
}

// Age returns how long ago the responder last scanned.
func (h *Heartbeat) Age(now time.Time) time.Duration {
	return now.Sub(h.LastScan)
}

// WriteHeartbeat atomically replaces the heartbeat file.
func (d *Dir) WriteHeartbeat(hb *Heartbeat) error {
	data, err := msgpack.Marshal(hb)
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}
	if err := iox.WriteFileAtomic(d.Path(HeartbeatName), data, FileMode); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	return nil
}

// ReadHeartbeat reads the heartbeat file.
// Returns ErrNoHeartbeat if no responder has written one.
func (d *Dir) ReadHeartbeat() (*Heartbeat, error) {
	data, err := os.ReadFile(d.Path(HeartbeatName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoHeartbeat
		}
		return nil, fmt.Errorf("read heartbeat: %w", err)
	}

	var hb Heartbeat
	if err := msgpack.Unmarshal(data, &hb); err != nil {
		return nil, fmt.Errorf("decode heartbeat: %w", err)
	}
	return &hb, nil
}

// RemoveHeartbeat deletes the heartbeat file on clean responder shutdown.
func (d *Dir) RemoveHeartbeat() error {
	return iox.RemoveIfExists(d.Path(HeartbeatName))
}
