package hostapp

import "os"

// Runtime exposes the host container, if the process was launched inside one.
type Runtime interface {
	// InitData returns the launch payload. ok is false outside a host
	// container; a detected container may still carry an empty payload.
	InitData() (payload string, ok bool)
}

// EnvRuntime reads the launch payload from an environment variable. The
// variable being set at all (even empty) means a host launched us.
type EnvRuntime struct {
	Var string
}

func (r EnvRuntime) InitData() (string, bool) {
	if r.Var == "" {
		return "", false
	}
	return os.LookupEnv(r.Var)
}

// StaticRuntime is a fixed payload, used when the payload was forwarded by
// a front end and for tests.
type StaticRuntime struct {
	Payload string
	Present bool
}

func (r StaticRuntime) InitData() (string, bool) {
	return r.Payload, r.Present
}

// NoHost is a Runtime that never detects a container.
var NoHost Runtime = StaticRuntime{}
