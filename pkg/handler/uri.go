package handler

import (
	"net"
	"strings"

	"github.com/buffon/errguard/pkg/host"
)

// GetCurrentUri reconstructs the request identifier. Network requests give an
// absolute URL; command-line units give the argument list without the program
// name, joined by single spaces.
func (h *Handler) GetCurrentUri() string {
	req := h.rt.Request()

	if _, ok := req.Var(host.VarRemoteAddr); ok {
		scheme := "http"
		if on, ok := req.Var(host.VarHTTPS); ok && !strings.EqualFold(on, "off") {
			scheme = "https"
		}
		name, _ := req.Var(host.VarServerName)
		uri, _ := req.Var(host.VarRequestURI)
		return scheme + "://" + name + uri
	}

	if len(req.Args) <= 1 {
		return ""
	}
	return strings.Join(req.Args[1:], " ")
}

// GetServerIp returns the first available of the server address, the local
// address, the resolved host name and the SERVER_ADDR environment variable.
func (h *Handler) GetServerIp() string {
	req := h.rt.Request()

	if addr, ok := req.Var(host.VarServerAddr); ok {
		return addr
	}
	if addr, ok := req.Var(host.VarLocalAddr); ok {
		return addr
	}
	if name, ok := req.Var(host.VarHostname); ok {
		return resolve(req, name)
	}
	return req.Env(host.VarServerAddr)
}

// resolve returns the first IPv4 address of name, any address when there is no
// IPv4 one, and name itself when resolution fails.
func resolve(req host.Request, name string) string {
	addrs, err := req.Lookup(name)
	if err != nil || len(addrs) == 0 {
		return name
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a
		}
	}
	return addrs[0]
}
