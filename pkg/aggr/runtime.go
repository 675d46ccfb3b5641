package aggr

import (
	"github.com/kvnode/tsvc/pkg/aval"
	"github.com/kvnode/tsvc/pkg/tsvc"
)

// Facade is the minimal "aerospike" surface the scripting runtime sees
// (spec §4.3): only logging is implemented, routed to the engine's Logger,
// matching the source's as_aggr_aerospike_hooks (every hook but .log is
// nil).
type Facade struct {
	logger tsvc.Logger
}

func (f Facade) Log(level tsvc.LogLevel, msg string) {
	f.logger.Log(level, msg)
}

// RuntimeStatus is the scripting runtime's terminal status, propagated back
// to Aggregate's caller unchanged (spec §4.3 "Termination"; spec §7
// "runtime_error... propagate verbatim").
type RuntimeStatus int

// ScriptingRuntime is the external collaborator from spec §2/§4.3: it pulls
// from the input stream, applies module.function to the argument list, and
// pushes results to the output stream. The engine is strictly reactive —
// it never calls into the runtime beyond this one entry point.
type ScriptingRuntime interface {
	ApplyStream(facade Facade, module, function string, args []aval.Value, in *InputStream, out *OutputStream) (RuntimeStatus, error)
}
