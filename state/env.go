// Package state defines shared program state.
package state

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"ovfx/config"
	"ovfx/registry"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	reg           *registry.Registry
	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

// Registry returns fragment registry built from active configuration. It is
// built on first use and shared afterwards.
func (e *LocalEnv) Registry() (*registry.Registry, error) {
	if e.reg != nil {
		return e.reg, nil
	}
	if e.Cfg == nil {
		return nil, errors.New("configuration is not loaded")
	}
	reg, err := e.Cfg.Registry()
	if err != nil {
		return nil, err
	}
	e.reg = reg
	return reg, nil
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}
