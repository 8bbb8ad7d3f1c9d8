package uidispatch

import (
	"github.com/joeycumines/logiface"
)

// dispatcherOptions holds configuration options for Dispatcher creation.
type dispatcherOptions struct {
	logger *logiface.Logger[logiface.Event]
}

// Option configures a Dispatcher instance.
type Option interface {
	applyDispatcher(*dispatcherOptions)
}

// optionImpl implements Option.
type optionImpl struct {
	applyFunc func(*dispatcherOptions)
}

func (o *optionImpl) applyDispatcher(opts *dispatcherOptions) {
	o.applyFunc(opts)
}

// WithLogger sets the structured logger used for failure reporting. A nil
// logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *dispatcherOptions) {
		opts.logger = logger
	}}
}

// resolveOptions applies Option instances to dispatcherOptions.
func resolveOptions(opts []Option) *dispatcherOptions {
	cfg := &dispatcherOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		opt.applyDispatcher(cfg)
	}
	return cfg
}

// looperOptions holds configuration options for UILooper creation.
type looperOptions struct {
	logger *logiface.Logger[logiface.Event]
}

// LooperOption configures a UILooper instance.
type LooperOption interface {
	applyLooper(*looperOptions)
}

// looperOptionImpl implements LooperOption.
type looperOptionImpl struct {
	applyFunc func(*looperOptions)
}

func (o *looperOptionImpl) applyLooper(opts *looperOptions) {
	o.applyFunc(opts)
}

// WithLooperLogger sets the structured logger used by the looper for failure
// reporting. A nil logger (the default) disables logging.
func WithLooperLogger(logger *logiface.Logger[logiface.Event]) LooperOption {
	return &looperOptionImpl{func(opts *looperOptions) {
		opts.logger = logger
	}}
}

// resolveLooperOptions applies LooperOption instances to looperOptions.
func resolveLooperOptions(opts []LooperOption) *looperOptions {
	cfg := &looperOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyLooper(cfg)
	}
	return cfg
}
