package bundle

// State is the derived load state of a source. It is rebuilt on every
// reload and never persisted. The three variants form a closed set;
// switches over State should handle all of them.
type State interface {
	isState()
}

// Available means the source's content was materialized and parsed.
type Available struct {
	Info *Info
}

// Missing means the source has no materialized content on disk yet.
type Missing struct{}

// Failed captures a per-source materialization or parse error.
type Failed struct {
	Err error
}

func (Available) isState() {}
func (Missing) isState()   {}
func (Failed) isState()    {}
