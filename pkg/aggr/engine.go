package aggr

import (
	"github.com/kvnode/tsvc/pkg/aval"
	"github.com/kvnode/tsvc/pkg/tsvc"
)

// Engine owns the wiring between a ScriptingRuntime and the streaming
// cursor (spec §2 "~30% of budget"). It holds no per-call state; Aggregate
// constructs a fresh cursor for every invocation.
type Engine struct {
	runtime ScriptingRuntime
	logger  tsvc.Logger
}

// NewEngine builds an Engine bound to a scripting runtime. A nil logger
// defaults to NopLogger.
func NewEngine(runtime ScriptingRuntime, logger tsvc.Logger) *Engine {
	if logger == nil {
		logger = tsvc.NopLogger()
	}
	return &Engine{runtime: runtime, logger: logger}
}

// Aggregate implements spec §4.3's entry contract: pull records described
// by recordIDList, open each under a reservation, apply PreCheck, feed
// survivors to the scripting runtime, and forward its output-stream writes
// to call.Hooks.OutputWrite. Returns the scripting runtime's status
// unchanged.
func (e *Engine) Aggregate(namespace string, call *Call, recordIDList BatchIterator, handle RecordHandle) (RuntimeStatus, error) {
	c := newCursor(namespace, call, recordIDList, handle, e.logger)
	defer c.terminate()

	in := &InputStream{c: c}
	out := &OutputStream{c: c}
	facade := Facade{logger: e.logger}

	args := call.Args
	if args == nil {
		args = []aval.Value{}
	}

	status, err := e.runtime.ApplyStream(facade, call.Module, call.Function, args, in, out)
	if err != nil && call.Hooks != nil {
		call.Hooks.SetError(call.UserData, tsvc.ResultFailUnknown)
	}
	return status, err
}
