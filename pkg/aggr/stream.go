package aggr

import (
	"github.com/kvnode/tsvc/pkg/aval"
	"github.com/kvnode/tsvc/pkg/tsvc"
)

// InputStream is the read-only adapter the scripting runtime pulls open
// records from (spec §4.3, §9 "small polymorphic interfaces"). Its source
// data is the cursor, carried as an unexported field rather than an opaque
// pointer since this is Go, not C.
type InputStream struct {
	c *cursor
}

// Read implements spec §4.3's input-stream read() policy: close whatever
// record is currently open, then scan forward for the next record that
// opens successfully and survives PreCheck. Producing a value transfers one
// logical reference to the scripting runtime; the caller (engine) does not
// track that reference further.
func (s *InputStream) Read() (aval.Value, bool) {
	s.c.close()
	for {
		id, ok := s.c.nextID()
		if !ok {
			return aval.Value{}, false
		}
		if err := s.c.open(id.PrimaryDigest); err != nil {
			s.c.logger.Log(tsvc.LogLevelDebug, "aggr: failed to open record, skipping", "err", err)
			continue
		}
		record := s.c.handle.Value()
		if !s.c.call.Hooks.PreCheck(s.c.call.UserData, record, id.SecondaryKey) {
			s.c.close()
			continue
		}
		return record, true
	}
}

// OutputStream is the write-only adapter the scripting runtime pushes
// results to (spec §4.3).
type OutputStream struct {
	c *cursor
}

// Write implements spec §4.3's output-stream write() policy: delegate to
// the hook and return whatever it reports.
func (s *OutputStream) Write(value aval.Value) StreamStatus {
	return s.c.call.Hooks.OutputWrite(s.c.call.UserData, value)
}
