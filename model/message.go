package model

// Envelope carries one candidate message from the source stage to the
// workers. Seq is the 1-based position in enumeration order and becomes the
// mail_id of every hit found in the message.
type Envelope struct {
	Seq    int
	Path   string
	Origin string
	Raw    []byte
	Err    error
}

// Result is what a worker reports back for one envelope.
type Result struct {
	Seq  int
	Path string
	Hits []Hit
	Err  error
}
