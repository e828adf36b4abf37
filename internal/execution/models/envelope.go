package models

// ResultEnvelope is the single message a worker writes back to its
// supervisor. Exactly one of Output and Exception is meaningful.
type ResultEnvelope[O any] struct {
	// Output is the value returned by the work function.
	Output *O `json:"output"`

	// Exception describes the failure of the work function, if any.
	Exception *Exception `json:"exception"`
}

// NewOutputEnvelope wraps a successful work function result.
func NewOutputEnvelope[O any](output O) ResultEnvelope[O] {
	return ResultEnvelope[O]{Output: &output}
}

// NewExceptionEnvelope wraps a work function failure.
func NewExceptionEnvelope[O any](err error) ResultEnvelope[O] {
	return ResultEnvelope[O]{Exception: NewException(err)}
}

// Failed reports whether the envelope carries an exception.
func (e ResultEnvelope[O]) Failed() bool {
	return e.Exception != nil
}

// WireType implements codec.Tagged. All instantiations share one tag, the
// output is decoded structurally.
func (e ResultEnvelope[O]) WireType() string {
	return "models.ResultEnvelope"
}
