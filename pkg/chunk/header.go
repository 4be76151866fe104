package chunk

// Header field separators and the interrupt-context task-name
// placeholder, per spec.md §6.
const (
	SeparatorNormal  = ' '
	SeparatorFailure = '@'
	IsrTaskName      = '?'
)

// TaskRepresentation selects what, if anything, identifies the
// sending producer in a message header.
type TaskRepresentation uint8

const (
	TaskRepresentationNone TaskRepresentation = iota
	TaskRepresentationID
	TaskRepresentationName
)

// HeaderOptions bundles everything WriteHeader needs to know about
// the currently configured header layout.
type HeaderOptions struct {
	Representation  TaskRepresentation
	TaskIDFormat    Format
	TaskName        string
	IsISR           bool
	TickFormat      Format // Base == 0 disables the tick field
	Tick            uint32
	SubsystemPrefix string // "" if not sending for a registered subsystem
}

// WriteHeader emits the configured header fields ahead of a message
// body. Only the first separator written is eligible to become the
// '@' truncation marker (spec.md §6): "the following message's first
// separator is changed to @", not every separator in its header.
func (b *ChunkBuilder) WriteHeader(o HeaderOptions) {
	first := true
	sep := func() {
		if first && b.truncated != nil && b.truncated.ConsumeAndClear() {
			b.Push(SeparatorFailure)
		} else {
			b.Push(SeparatorNormal)
		}
		first = false
	}

	switch o.Representation {
	case TaskRepresentationID:
		b.AppendUint(uint32(b.buf.Tag()), o.TaskIDFormat, false)
		sep()
	case TaskRepresentationName:
		if o.IsISR {
			b.Push(IsrTaskName)
		} else {
			b.WriteString(o.TaskName)
		}
		sep()
	}
	if o.TickFormat.Base != 0 {
		b.AppendUint(o.Tick, o.TickFormat, false)
		sep()
	}
	if o.SubsystemPrefix != "" {
		b.WriteString(o.SubsystemPrefix)
		sep()
	}
}
