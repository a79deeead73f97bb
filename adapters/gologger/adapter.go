// Package gologger bridges the dispatch logging stack onto the go-job
// logging contracts so queue workers log through the same provider as the
// core service.
package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// DefaultComponent is the logger name dispatch components resolve under when
// no explicit name is supplied.
const DefaultComponent = "dispatch"

// Resolve picks a logger with deterministic precedence provider > logger >
// nop, defaulting the component name to the dispatch root.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	if strings.TrimSpace(name) == "" {
		name = DefaultComponent
	}
	return glog.Resolve(name, provider, logger)
}

// ToJobProvider exposes a glog provider under the go-job provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger exposes a glog logger under the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves the glog pair for a component and returns it
// alongside the go-job bridges queue workers consume.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}
