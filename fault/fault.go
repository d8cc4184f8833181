// Package fault holds the closed set of failures raised while inspecting a
// crash image, and the sink glue used to render them.
//
// Faults are ordinary return values. Each carries exactly the context
// needed to diagnose the failure after the fact and is immutable once
// constructed. Callers either hand a fault to a Sink or convert it into a
// higher level decision, such as skipping an unmapped virtual range.
package fault

import (
	log "github.com/sirupsen/logrus"

	"github.com/kaixuanlive/xen-crashdump-analyser/types"
)

// Limit64GB is the first physical address beyond the reach of 32bit capture
// tooling. Seek and read failures at or past it point to a limitation of
// the tool that produced the image rather than to image corruption.
const Limit64GB types.Maddr = 64 << 30

// Fault is one failure from the closed taxonomy: Memseek, Memread,
// Pagefault, Validation or Filewrite.
type Fault interface {
	error

	// Label is the stable machine readable kind, e.g. "memseek".
	Label() string

	// Fields is the structured context for log rendering.
	Fields() log.Fields
}

// Sink consumes faults for rendering. The component string names the
// subsystem that raised the fault.
type Sink interface {
	Submit(component string, f Fault)
}

// LogSink renders faults through logrus. A nil Logger falls back to the
// standard logger. Submit never fails; rendering problems degrade inside
// logrus to a best effort message.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Submit(component string, f Fault) {
	logger := s.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger.WithField("component", component).WithFields(f.Fields()).Error(f.Error())
}

// Log submits f to a sink backed by the standard logger.
func Log(component string, f Fault) {
	LogSink{}.Submit(component, f)
}
