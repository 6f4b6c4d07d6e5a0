package recognition

// Kind identifies which recognizer backs a session. The choice is made once
// at session start and only changes on an explicit transport failure.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// Result is one partial or final recognition from the local engine.
type Result struct {
	Text       string
	Confidence float64
	IsFinal    bool
}

// Callbacks receive engine output. OnEnd fires when the engine terminates the
// stream on its own, which callers treat as transient rather than terminal.
type Callbacks struct {
	OnResult func(Result)
	OnEnd    func()
	OnError  func(error)
}

// Options configure one continuous recognition stream.
type Options struct {
	Language       string
	SampleRate     int
	InterimResults bool
}
