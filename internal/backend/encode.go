package backend

// EncodePass is the single final-list pass: it hands the fully lowered
// stream to the machine-code encoder. Encoding never
// mutates the IR, so it always reports changed = false; an encoding failure
// is recorded on the context for the driver to surface as a diagnostic.
type EncodePass struct {
	enc Encoder
}

// NewEncodePass returns the final encode pass backed by enc.
func NewEncodePass(enc Encoder) *EncodePass { return &EncodePass{enc: enc} }

func (p *EncodePass) Name() string               { return "encode" }
func (p *EncodePass) PrintModeBefore() PrintMode { return PrintModeConcrete }
func (p *EncodePass) PrintModeAfter() PrintMode  { return PrintModeConcrete }

func (p *EncodePass) Run(ctx *MicroPassContext) bool {
	if err := p.enc.Encode(ctx.Builder); err != nil {
		ctx.EncodeErr = err
	}
	return false
}
