package compiler

import (
	"io"

	"go.uber.org/zap"
)

type options struct {
	log   *zap.Logger
	prune bool
}

// Option configures Compile and ParseSource.
type Option func(*options)

// WithLogger sets the logger used for stage summaries.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithPrune enables removal of unreachable Internal functions before code
// generation.
func WithPrune(prune bool) Option {
	return func(o *options) { o.prune = prune }
}

func newOptions(opts []Option) *options {
	o := &options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return o
}

// ParseSource runs the front end over src: scan, pair, parse. Words and
// records are pulled lazily; the first error stops the pipeline.
func ParseSource(src string, opts ...Option) ([]Item, error) {
	o := newOptions(opts)
	return parseSource(src, o)
}

func parseSource(src string, o *options) ([]Item, error) {
	scanner := NewScanner(src)
	pairer := NewPairer(scanner)
	parser := NewParser(pairer, WithParserLogger(o.log))

	items, err := parser.Parse()
	if err != nil {
		o.log.Debug("front end failed", zap.Error(err))
		return nil, err
	}
	o.log.Debug("parsed source", zap.Int("items", len(items)))

	if o.prune {
		before := len(items)
		items = Prune(items)
		o.log.Debug("pruned unreachable functions", zap.Int("removed", before-len(items)))
	}
	return items, nil
}

// Compile runs the whole pipeline over src and writes the object produced by
// b to w. It returns the items that were lowered.
func Compile(src string, b Backend, w io.Writer, opts ...Option) ([]Item, error) {
	o := newOptions(opts)

	items, err := parseSource(src, o)
	if err != nil {
		return nil, err
	}
	if err := Generate(items, b, o.log); err != nil {
		return nil, err
	}
	if err := b.Emit(w); err != nil {
		return nil, &Error{Kind: KindCodegen, Msg: "emit object", Err: err}
	}
	o.log.Debug("emitted object")
	return items, nil
}
