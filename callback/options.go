package callback

import (
	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type
type Option func(interface{})

type options struct {
	withLogger      hclog.Logger
	withSessionKeys SessionKeys
}

func getOpts(opt ...Option) options {
	opts := options{
		withLogger:      hclog.NewNullLogger(),
		withSessionKeys: DefaultSessionKeys(),
	}
	for _, o := range opt {
		o(&opts)
	}
	return opts
}

// WithLogger provides an optional logger for the handlers. Failures are
// logged with full detail here and nowhere else.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withLogger = l
		}
	}
}

// WithSessionKeys overrides the session keys the handlers store their data
// under.
func WithSessionKeys(keys SessionKeys) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withSessionKeys = keys
		}
	}
}
