package daemon

import (
	"github.com/bsv-blockchain/marabu/services/blockvalidation"
	"github.com/bsv-blockchain/marabu/services/objects"
	"github.com/bsv-blockchain/marabu/ulogger"
)

// Option is a functional option type for configuring a Node.
type Option func(*Node)

// WithLoggerFactory provides a custom logger factory for the node and its services.
func WithLoggerFactory(factory func(serviceName string) ulogger.Logger) Option {
	return func(n *Node) {
		n.loggerFactory = factory
	}
}

// WithNetwork sets the peer network used to request missing objects and to
// announce new ones. Without it the node works offline.
func WithNetwork(network objects.Network) Option {
	return func(n *Node) {
		n.network = network
	}
}

// WithBlockValidationOptions passes options to the block validator.
func WithBlockValidationOptions(opts ...blockvalidation.Option) Option {
	return func(n *Node) {
		n.blockValidationOpts = append(n.blockValidationOpts, opts...)
	}
}
