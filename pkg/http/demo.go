package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/buffon/errguard/pkg/errors"
	"github.com/buffon/errguard/pkg/host"
)

// Demo routes, each driving one interceptor path
const (
	DemoOK        = "ok"
	DemoException = "exception"
	DemoError     = "error"
	DemoNotice    = "notice"
	DemoFatal     = "fatal"
	DemoStringify = "stringify"
)

// DemoHandler serves /demo/{name}. It must run behind Middleware.
func DemoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt, ok := host.FromContext(r.Context())
		if !ok {
			http.Error(w, "no runtime", http.StatusInternalServerError)
			return
		}

		name := strings.TrimPrefix(r.URL.Path, "/demo/")
		if !RunDemo(r.Context(), rt, name) {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"demo": name, "status": "ok"})
	})
}

// RunDemo drives the named path on rt. It returns false for unknown names and
// true when the path lets the unit continue.
func RunDemo(ctx context.Context, rt *host.Runtime, name string) bool {
	switch name {
	case DemoOK:
	case DemoException:
		cause := fmt.Errorf("dial tcp 10.0.0.7:3306: connection refused")
		panic(errors.NewBuilder(0).
			WithMessage("could not load account").
			WithPrevious(errors.Wrap(errors.EUserError, cause)).
			Build())
	case DemoError:
		rt.Trigger(ctx, errors.EUserError, "account balance out of range")
	case DemoNotice:
		rt.Trigger(ctx, errors.ENotice, "undefined index: nickname")
	case DemoFatal:
		_, file, line, _ := runtime.Caller(0)
		rt.Fatal(errors.EError, "Allowed memory size of 134217728 bytes exhausted", file, line)
	case DemoStringify:
		_ = host.Stringify(ctx, faultyStringer{rt: rt})
	default:
		return false
	}
	return true
}

type faultyStringer struct {
	rt *host.Runtime
}

func (f faultyStringer) StringContext(ctx context.Context) string {
	f.rt.Trigger(ctx, errors.ERecoverableError, "object could not be converted to string")
	return ""
}
