// Package trace records message sends as a stream of CBOR records.
package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/objcsend/objc"
)

var log = commonlog.GetLogger("objcsend.trace")

var encMode cbor.EncMode

const timeLayout = time.RFC3339Nano

func init() {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Record is one traced send.
type Record struct {
	Time       time.Time     `cbor:"1,keyasint"`
	Selector   string        `cbor:"2,keyasint"`
	Receiver   uint64        `cbor:"3,keyasint"`
	SuperClass uint64        `cbor:"4,keyasint,omitempty"`
	Symbol     string        `cbor:"5,keyasint"`
	Convention string        `cbor:"6,keyasint"`
	Checked    bool          `cbor:"7,keyasint"`
	Error      string        `cbor:"8,keyasint,omitempty"`
	Exception  bool          `cbor:"9,keyasint,omitempty"`
	Elapsed    time.Duration `cbor:"10,keyasint"`
	Session    string        `cbor:"11,keyasint,omitempty"`
}

// NewRecord converts a send event observed at t.
func NewRecord(ev objc.SendEvent, t time.Time) Record {
	r := Record{
		Time:       t,
		Selector:   ev.Selector,
		Receiver:   uint64(ev.Receiver),
		SuperClass: uint64(ev.SuperClass),
		Symbol:     ev.Entry.Symbol,
		Convention: ev.Entry.Convention.String(),
		Checked:    ev.Checked,
		Elapsed:    ev.Elapsed,
	}
	if ev.Err != nil {
		r.Error = ev.Err.Error()
		var exc *objc.Exception
		r.Exception = errors.As(ev.Err, &exc)
	}
	return r
}

// Recorder writes a record for every observed send. It is safe for
// concurrent use.
type Recorder struct {
	mu      sync.Mutex
	enc     *cbor.Encoder
	closer  io.Closer
	session string
	count   int
	err     error
	now     func() time.Time
}

var _ objc.Observer = (*Recorder)(nil)

// NewRecorder returns a recorder writing to w. Every record it writes
// carries a fresh session id.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{
		enc:     encMode.NewEncoder(w),
		session: uuid.New().String(),
		now:     time.Now,
	}
}

// Session identifies the records written by this recorder.
func (r *Recorder) Session() string { return r.session }

// Create truncates path and returns a recorder writing to it. Close
// closes the file.
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace: cannot create %s: %w", path, err)
	}
	r := NewRecorder(f)
	r.closer = f
	return r, nil
}

// ObserveSend implements objc.Observer. After the first write error the
// recorder drops further records; Err reports it.
func (r *Recorder) ObserveSend(ev objc.SendEvent) {
	rec := NewRecord(ev, r.now())
	rec.Session = r.session

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	if err := r.enc.Encode(rec); err != nil {
		r.err = fmt.Errorf("trace: write record: %w", err)
		log.Errorf("%s", r.err)
		return
	}
	r.count++
}

// Count is the number of records written.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close closes the underlying file, if the recorder owns one, and returns
// the first write error.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closer != nil {
		if err := r.closer.Close(); err != nil && r.err == nil {
			r.err = err
		}
		r.closer = nil
	}
	return r.err
}

// ReadAll decodes every record in r.
func ReadAll(r io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(r)
	var out []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("trace: record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
}

// ReadFile decodes the trace at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: cannot read %s: %w", path, err)
	}
	defer f.Close()
	return ReadAll(f)
}
