// Package plugin is the dispatch root of a plugin process. It owns the
// kernel and assistant registries, registers the administrative and
// forwarding JSON-RPC methods, and runs the configured transport.
//
//	p, err := plugin.New(
//		plugin.WithName("echo"),
//		plugin.WithKernels(kernel.Class("echo", newEcho)),
//	)
//	...
//	err = p.Run(ctx, cfg)
package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mnehpets/oneplugin/assistant"
	"github.com/mnehpets/oneplugin/config"
	"github.com/mnehpets/oneplugin/instance"
	"github.com/mnehpets/oneplugin/jsonrpc"
	"github.com/mnehpets/oneplugin/kernel"
	"github.com/mnehpets/oneplugin/metrics"
	"github.com/mnehpets/oneplugin/transport"
)

// Option configures a Plugin.
type Option func(*options)

type namedMethod struct {
	name    string
	handler jsonrpc.Handler
}

type options struct {
	name       string
	version    string
	kernels    []instance.Class[kernel.Kernel]
	assistants []instance.Class[assistant.Assistant]
	methods    []namedMethod
	log        *slog.Logger
	metrics    *metrics.Metrics
	stdin      io.Reader
	stdout     io.Writer
}

// WithName sets the plugin name reported by the manifest.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithVersion sets the plugin version reported by the manifest.
func WithVersion(version string) Option {
	return func(o *options) { o.version = version }
}

// WithKernels registers kernel classes, addressed by class name in kernel_start.
func WithKernels(classes ...instance.Class[kernel.Kernel]) Option {
	return func(o *options) { o.kernels = append(o.kernels, classes...) }
}

// WithAssistants registers assistant classes. Each is started on first use
// and addressed by its class name.
func WithAssistants(classes ...instance.Class[assistant.Assistant]) Option {
	return func(o *options) { o.assistants = append(o.assistants, classes...) }
}

// WithMethod registers an extra root method. Names must not collide with
// the built-in methods.
func WithMethod(name string, h jsonrpc.Handler) Option {
	return func(o *options) { o.methods = append(o.methods, namedMethod{name: name, handler: h}) }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics records calls and live instances in m, and serves it at
// /metrics on the http transport.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithStdio replaces os.Stdin and os.Stdout for the stdio transport.
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(o *options) {
		o.stdin = in
		o.stdout = out
	}
}

// Plugin dispatches JSON-RPC calls to kernels and assistants.
type Plugin struct {
	opts    options
	log     *slog.Logger
	methods *jsonrpc.Methods
	server  *jsonrpc.Server

	kernels    *instance.Registry[kernel.Kernel]
	assistants *instance.Registry[assistant.Assistant]

	// assistantIDs maps assistant class names to their running instance.
	amu          sync.Mutex
	assistantIDs map[string]*assistantSlot
}

// assistantSlot serializes the lazy start of one assistant class.
type assistantSlot struct {
	mu sync.Mutex
	id string
}

func applyOptions(opts []Option) options {
	o := options{
		name:    "plugin",
		version: "0.0.0",
		stdin:   os.Stdin,
		stdout:  os.Stdout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Identity returns the name and version opts configure, without building a
// Plugin.
func Identity(opts ...Option) (name, version string) {
	o := applyOptions(opts)
	return o.name, o.version
}

// New creates a Plugin. It fails on duplicate class names or a method name
// that is already taken.
func New(opts ...Option) (*Plugin, error) {
	o := applyOptions(opts)
	if o.log == nil {
		o.log = slog.New(slog.DiscardHandler)
	}

	kernelClasses, err := instance.NewClasses(o.kernels...)
	if err != nil {
		return nil, fmt.Errorf("plugin: kernels: %w", err)
	}
	assistantClasses, err := instance.NewClasses(o.assistants...)
	if err != nil {
		return nil, fmt.Errorf("plugin: assistants: %w", err)
	}

	p := &Plugin{
		opts:         o,
		log:          o.log.With("component", "plugin"),
		methods:      jsonrpc.NewMethods(),
		assistantIDs: make(map[string]*assistantSlot),
	}
	p.kernels = instance.NewRegistry(kernelClasses, instance.WithHooks[kernel.Kernel](p.hooks("kernel")))
	p.assistants = instance.NewRegistry(assistantClasses, instance.WithHooks[assistant.Assistant](p.hooks("assistant")))

	p.registerRootMethods()
	for _, m := range o.methods {
		if _, exists := p.methods.Lookup(m.name); exists {
			return nil, fmt.Errorf("plugin: method %q is already registered", m.name)
		}
		if m.name == "" || m.handler == nil {
			return nil, errors.New("plugin: extra methods need a name and a handler")
		}
		p.methods.Register(m.name, m.handler)
	}

	serverOpts := []jsonrpc.ServerOption{jsonrpc.WithLogger(o.log.With("component", "jsonrpc"))}
	if o.metrics != nil {
		serverOpts = append(serverOpts, jsonrpc.WithObserver(o.metrics))
	}
	p.server = jsonrpc.NewServer(p.methods, serverOpts...)
	return p, nil
}

func (p *Plugin) hooks(kind string) instance.Hooks {
	return instance.Hooks{
		OnStarted: func(class string) {
			p.log.Info("instance started", "kind", kind, "class", class)
			if p.opts.metrics != nil {
				p.opts.metrics.InstanceStarted(kind, class)
			}
		},
		OnStopped: func(class string) {
			p.log.Info("instance stopped", "kind", kind, "class", class)
			if p.opts.metrics != nil {
				p.opts.metrics.InstanceStopped(kind, class)
			}
		},
	}
}

// Server returns the JSON-RPC server shared by both transports.
func (p *Plugin) Server() *jsonrpc.Server {
	return p.server
}

// Handle processes one request envelope. See jsonrpc.Server.Handle.
func (p *Plugin) Handle(ctx context.Context, raw []byte) []byte {
	return p.server.Handle(ctx, raw)
}

// Methods returns the names of all registered methods, sorted.
func (p *Plugin) Methods() []string {
	return p.methods.Names()
}

// Manifest describes the plugin to a host.
type Manifest struct {
	Name       string   `yaml:"name" json:"name"`
	Version    string   `yaml:"version" json:"version"`
	Kernels    []string `yaml:"kernels" json:"kernels"`
	Assistants []string `yaml:"assistants" json:"assistants"`
}

// Manifest returns the plugin's name, version and class names.
func (p *Plugin) Manifest() Manifest {
	return Manifest{
		Name:       p.opts.name,
		Version:    p.opts.version,
		Kernels:    p.kernels.Classes().Names(),
		Assistants: p.assistants.Classes().Names(),
	}
}

// Run serves cfg's transport until ctx is cancelled or the stdio session
// ends, then stops every instance.
func (p *Plugin) Run(ctx context.Context, cfg config.Config) (err error) {
	if err := cfg.Validate(); err != nil {
		return err
	}
	defer func() {
		closeErr := p.Close(context.WithoutCancel(ctx))
		err = errors.Join(err, closeErr)
	}()

	switch cfg.Transport {
	case config.TransportHTTP:
		opts := transport.HTTPOptions{
			Token:           cfg.Token,
			MaxBodyBytes:    cfg.MaxBodyBytes,
			ShutdownTimeout: cfg.ShutdownTimeout,
			Logger:          p.opts.log.With("component", "http"),
		}
		if p.opts.metrics != nil {
			opts.Metrics = p.opts.metrics.Handler()
		}
		srv := transport.NewHTTPServer(p.server, opts)
		if err := srv.Listen(cfg.Port); err != nil {
			return err
		}
		return srv.Serve(ctx)
	default:
		return transport.ServeStdio(ctx, p.opts.stdin, p.opts.stdout, p.server, p.opts.log.With("component", "stdio"))
	}
}

// Close stops all kernel and assistant instances.
func (p *Plugin) Close(ctx context.Context) error {
	p.amu.Lock()
	clear(p.assistantIDs)
	p.amu.Unlock()
	return errors.Join(p.kernels.Close(ctx), p.assistants.Close(ctx))
}

// Kernels returns the kernel registry.
func (p *Plugin) Kernels() *instance.Registry[kernel.Kernel] {
	return p.kernels
}
