package host

import (
	"net"
	"os"
)

// Server variable names read by the interceptor
const (
	VarRemoteAddr    = "REMOTE_ADDR"
	VarServerName    = "SERVER_NAME"
	VarServerPort    = "SERVER_PORT"
	VarServerAddr    = "SERVER_ADDR"
	VarLocalAddr     = "LOCAL_ADDR"
	VarHostname      = "HOSTNAME"
	VarRequestURI    = "REQUEST_URI"
	VarRequestMethod = "REQUEST_METHOD"
	VarHTTPS         = "HTTPS"
)

// Request is the read-only ambient context of an execution unit
type Request struct {
	// Server holds server variables (REMOTE_ADDR, SERVER_NAME, ...)
	Server map[string]string

	// Args is the argument list the unit was started with, program name first
	Args []string

	// Getenv reads the environment (default os.Getenv)
	Getenv func(key string) string

	// LookupHost resolves a host name (default net.LookupHost)
	LookupHost func(host string) ([]string, error)
}

// CLIRequest returns the context of a command-line invocation
func CLIRequest(args []string) Request {
	return Request{
		Server: map[string]string{},
		Args:   append([]string(nil), args...),
	}
}

// Var returns a server variable and whether it is set to a non-empty value
func (r Request) Var(name string) (string, bool) {
	v, ok := r.Server[name]
	return v, ok && v != ""
}

// Env reads an environment variable
func (r Request) Env(key string) string {
	if r.Getenv != nil {
		return r.Getenv(key)
	}
	return os.Getenv(key)
}

// Lookup resolves host to its addresses
func (r Request) Lookup(host string) ([]string, error) {
	if r.LookupHost != nil {
		return r.LookupHost(host)
	}
	return net.LookupHost(host)
}
